// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

// package barcode parses the PCB barcodes printed on Mesa boards. A barcode
// has four dash-separated segments: board name, revision, variant and serial
// number, e.g. "IMX2CC-0020-A-00042". The board name is normalized to lower
// case; any segment that cannot be extracted becomes "unknown".
package barcode

import (
	"regexp"
	"strings"

	"github.com/mesa-nmanteufel/testhub/internal/model"
)

// Unknown is the placeholder for a segment that could not be parsed.
const Unknown = "unknown"

// Segment extraction patterns. The serial pattern stops at whitespace so a
// scanner-appended carriage return never ends up in the serial.
var (
	namePattern    = regexp.MustCompile(`^(.*?)-`)
	revPattern     = regexp.MustCompile(`^[^-]*-(.*?)-`)
	variantPattern = regexp.MustCompile(`(?:[^-]*-){2}([^-]*)-`)
	serialPattern  = regexp.MustCompile(`(?:[^-]*-){3}([^-\s]*)`)
)

// Parse extracts the board identity from a scanned barcode. It never fails;
// unparseable segments come back as Unknown and Valid reports usability.
func Parse(input string) model.Board {
	b := model.Board{
		Name:     Unknown,
		Revision: Unknown,
		Variant:  Unknown,
		Serial:   Unknown,
	}
	if m := namePattern.FindStringSubmatch(input); m != nil {
		b.Name = strings.ToLower(m[1])
	}
	if m := revPattern.FindStringSubmatch(input); m != nil {
		b.Revision = m[1]
	}
	if m := variantPattern.FindStringSubmatch(input); m != nil {
		b.Variant = m[1]
	}
	// The serial group may legitimately capture empty (e.g. a trailing
	// dash); the raw capture is kept and Valid rejects it.
	if m := serialPattern.FindStringSubmatch(input); m != nil {
		b.Serial = m[1]
	}
	return b
}

// Valid reports whether a parsed board can be used for report storage and
// lookup. The variant may legitimately be empty on some older label stock,
// so only name, revision and serial are required.
func Valid(b model.Board) bool {
	return b.Name != Unknown && b.Name != "" &&
		b.Revision != Unknown &&
		b.Serial != Unknown && b.Serial != ""
}
