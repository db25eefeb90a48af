// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

// package export writes the file formats other tools consume: per-board
// JSON report files, HTML renderings for the viewer panes, and compressed
// database backups.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mesa-nmanteufel/testhub/internal/model"
)

// boardFile is the on-disk JSON document for one board. Downstream tooling
// parses these files, so the field names are frozen.
type boardFile struct {
	TestReports     []model.TestReport     `json:"test_reports"`
	RedTagMessages  []model.RedTagMessage  `json:"red_tag_messages,omitempty"`
	ProcessMessages []model.ProcessMessage `json:"process_flow_messages,omitempty"`
}

// FileName returns the report file name for a board: name-rev-variant-serial.json.
func FileName(b model.Board) string {
	return b.String() + ".json"
}

// WriteBoardFile writes the complete document for one board: every stored
// report plus its red tag and process flow messages.
func WriteBoardFile(dir string, b model.Board, reports []model.TestReport, redTags []model.RedTagMessage, procMsgs []model.ProcessMessage) (string, error) {
	path := filepath.Join(dir, FileName(b))
	doc := &boardFile{
		TestReports:     reports,
		RedTagMessages:  redTags,
		ProcessMessages: procMsgs,
	}
	if doc.TestReports == nil {
		doc.TestReports = []model.TestReport{}
	}
	if err := writeBoardFile(path, doc); err != nil {
		return "", err
	}
	return path, nil
}

// MarshalBoardFile renders a board document to bytes, for uploads that
// never touch the local disk.
func MarshalBoardFile(reports []model.TestReport, redTags []model.RedTagMessage, procMsgs []model.ProcessMessage) ([]byte, error) {
	doc := &boardFile{
		TestReports:     reports,
		RedTagMessages:  redTags,
		ProcessMessages: procMsgs,
	}
	if doc.TestReports == nil {
		doc.TestReports = []model.TestReport{}
	}
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode board document: %w", err)
	}
	return append(data, '\n'), nil
}

func writeBoardFile(path string, doc *boardFile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode report file: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}
