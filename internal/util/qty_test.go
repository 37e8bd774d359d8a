package util

import "testing"

func TestParseQty(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  float64
	}{
		{name: "thousand with space", input: "Cement 1 000 bags", want: 1000},
		{name: "decimal comma", input: "Binding wire 1,5 kg", want: 1.5},
		{name: "decimal dot", input: "Binding wire 1.5 kg", want: 1.5},
		{name: "thousand dot", input: "Bricks 1.000 pcs", want: 1000},
		{name: "dimension and qty", input: "TMT bar 12mm 100 pcs", want: 100},
		{name: "unit after number", input: "River sand 25 cum", want: 25},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			parsed := ParseQty(tc.input)
			if parsed.Qty == nil {
				t.Fatalf("qty is nil")
			}
			if *parsed.Qty != tc.want {
				t.Fatalf("got %v want %v", *parsed.Qty, tc.want)
			}
		})
	}
}

func TestNormalizeUnit(t *testing.T) {
	cases := map[string]string{
		"Nos":    "pcs",
		"bag":    "bags",
		"tonne":  "ton",
		"mtr":    "m",
		"litres": "ltr",
	}
	for in, want := range cases {
		if got := NormalizeUnit(in); got != want {
			t.Fatalf("NormalizeUnit(%q)=%q want %q", in, got, want)
		}
	}
}
