package util

import "testing"

func TestMatchConfidenceTiers(t *testing.T) {
	cases := []struct {
		name    string
		item    string
		product string
		min     float64
		max     float64
	}{
		{name: "exact", item: "Portland Cement", product: "portland cement", min: 1.0, max: 1.0},
		{name: "containment", item: "Portland Cement", product: "Portland Cement OPC 53", min: 0.85, max: 0.95},
		{name: "full word overlap", item: "cement portland", product: "portland cement grade", min: 0.90, max: 0.90},
		{name: "half overlap", item: "white cement fine portland", product: "portland cement", min: 0.60, max: 0.75},
		{name: "zero overlap", item: "asdkjasd qweqwe", product: "portland cement", min: 0.30, max: 0.30},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MatchConfidence(tc.item, tc.product)
			if got < tc.min || got > tc.max {
				t.Fatalf("confidence %v outside [%v, %v]", got, tc.min, tc.max)
			}
			if got < 0 || got > 1 {
				t.Fatalf("confidence %v outside [0,1]", got)
			}
		})
	}
}

func TestNameVariants(t *testing.T) {
	variants := NameVariants("cement bags")
	want := map[string]bool{"cement bags": false, "cement bag": false}
	for _, v := range variants {
		if _, ok := want[v]; ok {
			want[v] = true
		}
	}
	for v, seen := range want {
		if !seen {
			t.Fatalf("variant %q missing in %v", v, variants)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	if got := NormalizeName("  TMT  Steel×Bar 12*2.5 (Fe500)!  "); got != "tmt steelxbar 12x2.5 fe500" {
		t.Fatalf("got %q", got)
	}
}
