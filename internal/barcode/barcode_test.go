package barcode

import (
	"testing"

	"github.com/mesa-nmanteufel/testhub/internal/model"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  model.Board
	}{
		{
			name:  "full barcode",
			input: "IMX2CC-0020-A-00042",
			want:  model.Board{Name: "imx2cc", Revision: "0020", Variant: "A", Serial: "00042"},
		},
		{
			name:  "lowercases board name only",
			input: "Cam_CtrlG4-0002-B-00007",
			want:  model.Board{Name: "cam_ctrlg4", Revision: "0002", Variant: "B", Serial: "00007"},
		},
		{
			name:  "scanner trailing newline excluded from serial",
			input: "IMX2CC-0020-A-00042\n",
			want:  model.Board{Name: "imx2cc", Revision: "0020", Variant: "A", Serial: "00042"},
		},
		{
			name:  "empty variant segment preserved",
			input: "SENS_SNIMX565-0020--00001",
			want:  model.Board{Name: "sens_snimx565", Revision: "0020", Variant: "", Serial: "00001"},
		},
		{
			// The serial group matches empty on a trailing dash and the raw
			// capture is returned, not Unknown.
			name:  "trailing dash yields empty serial",
			input: "a-b-c-",
			want:  model.Board{Name: "a", Revision: "b", Variant: "c", Serial: ""},
		},
		{
			name:  "no dashes",
			input: "garbage",
			want:  model.Board{Name: Unknown, Revision: Unknown, Variant: Unknown, Serial: Unknown},
		},
		{
			name:  "empty input",
			input: "",
			want:  model.Board{Name: Unknown, Revision: Unknown, Variant: Unknown, Serial: Unknown},
		},
		{
			name:  "two segments only",
			input: "imx2cc-0020",
			want:  model.Board{Name: "imx2cc", Revision: Unknown, Variant: Unknown, Serial: Unknown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input)
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestValid(t *testing.T) {
	ok := Parse("imx2cc-0020-A-00042")
	if !Valid(ok) {
		t.Errorf("expected %+v to be valid", ok)
	}

	// Variant may be empty; everything else must parse.
	if !Valid(model.Board{Name: "imx2cc", Revision: "0020", Variant: "", Serial: "1"}) {
		t.Error("empty variant should still be valid")
	}
	if Valid(Parse("garbage")) {
		t.Error("unparseable barcode should not be valid")
	}
	if Valid(model.Board{Name: "imx2cc", Revision: Unknown, Serial: "1"}) {
		t.Error("unknown revision should not be valid")
	}
	if Valid(Parse("a-b-c-")) {
		t.Error("empty serial should not be valid")
	}
}
