package track

import "testing"

func TestIssueKey(t *testing.T) {
	e := NewKeyExtractor("")

	tests := []struct {
		name  string
		title string
		body  string
		want  string
	}{
		{
			name:  "key in title",
			title: "Fix bug AIP201-106",
			body:  "",
			want:  "AIP201-106",
		},
		{
			name:  "key in body only",
			title: "Fix bug",
			body:  "Issued tickets\nAIP201-106\nEstimate Time: 1,5h",
			want:  "AIP201-106",
		},
		{
			name:  "title wins over body",
			title: "AIP1-1 cleanup",
			body:  "relates to AIP2-2",
			want:  "AIP1-1",
		},
		{
			name:  "lowercase normalized",
			title: "aip201-106 follow-up",
			body:  "",
			want:  "AIP201-106",
		},
		{
			name:  "no ticket",
			title: "no ticket",
			body:  "",
			want:  "N/A",
		},
		{
			name:  "prefix without numbers is not a key",
			title: "AIP- housekeeping",
			body:  "",
			want:  "N/A",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.IssueKey(tt.title, tt.body); got != tt.want {
				t.Errorf("IssueKey(%q, %q) = %q, want %q", tt.title, tt.body, got, tt.want)
			}
		})
	}
}

func TestProjectKey(t *testing.T) {
	e := NewKeyExtractor("")

	tests := []struct {
		issueKey string
		want     string
	}{
		{"AIP201-106", "AIP201"},
		{"AIP10-2", "AIP10"},
		{"aip10-2", "AIP10"},
		{"N/A", "Unknown"},
		{"", "Unknown"},
		{"TICKET-9", "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.issueKey, func(t *testing.T) {
			if got := e.ProjectKey(tt.issueKey); got != tt.want {
				t.Errorf("ProjectKey(%q) = %q, want %q", tt.issueKey, got, tt.want)
			}
		})
	}
}

func TestCustomPrefix(t *testing.T) {
	e := NewKeyExtractor("OPS")

	if got := e.IssueKey("OPS7-12 rotate certs", ""); got != "OPS7-12" {
		t.Errorf("IssueKey = %q, want OPS7-12", got)
	}
	if got := e.ProjectKey("OPS7-12"); got != "OPS7" {
		t.Errorf("ProjectKey = %q, want OPS7", got)
	}
	// Tickets from a different scheme are not recognized.
	if got := e.IssueKey("AIP201-106", ""); got != NoIssue {
		t.Errorf("IssueKey = %q, want %q", got, NoIssue)
	}
}
