package pipeline

import "testing"

func TestDetectBOQRequest(t *testing.T) {
	cases := []struct {
		name        string
		subject     string
		text        string
		html        string
		attachments []string
		want        bool
	}{
		{
			name:    "subject keyword plus quantities",
			subject: "BOQ for site phase 2",
			text:    "Portland Cement 10 bags\nTMT Steel 5 pcs",
			want:    true,
		},
		{
			name:        "keywords and spreadsheet attachment",
			subject:     "material requirement",
			attachments: []string{"site-boq.xlsx"},
			want:        true,
		},
		{
			name: "html table with quantities",
			text: "see attached list 10 20",
			html: "<table><tr><td>Cement</td><td>10</td></tr></table>",
			want: true,
		},
		{
			name:    "ordinary correspondence",
			subject: "Lunch on Friday",
			text:    "see you there",
			want:    false,
		},
		{
			name: "empty mail",
			want: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DetectBOQRequest(tc.subject, tc.text, tc.html, tc.attachments)
			if got.IsBOQ != tc.want {
				t.Fatalf("IsBOQ=%v score=%.2f", got.IsBOQ, got.Score)
			}
			if got.IsBOQ && got.Reason != "rules_positive" {
				t.Fatalf("reason=%q", got.Reason)
			}
		})
	}
}
