package track

import (
	"regexp"
	"strings"

	"github.com/prtally/prtally/pkg/timeparse"
)

// labeledTimeRe matches annotations like "Estimate Time: 1,5h" or
// "Actual Time: 30m". The unit suffix is required; the number may use
// a comma or a dot as its decimal separator.
var labeledTimeRe = regexp.MustCompile(`(?i)(?:Est(?:imate)?|Actual)\s*Time:?\s*(\d+(?:[.,]\d+)?)[hpm]`)

// RecordParser combines identifier extraction and duration parsing to
// turn one raw pull request into an EffortRecord.
type RecordParser struct {
	keys *KeyExtractor
}

// NewRecordParser builds a parser for tickets with the given project
// prefix ("" selects DefaultProjectPrefix).
func NewRecordParser(prefix string) *RecordParser {
	return &RecordParser{keys: NewKeyExtractor(prefix)}
}

// Parse never fails: a missing body, malformed annotations, or an
// absent ticket all degrade to zero values and the N/A / Unknown
// sentinels.
func (p *RecordParser) Parse(pr PullRequest) EffortRecord {
	body := ""
	if pr.Body != nil {
		body = *pr.Body
	}

	issueKey := p.keys.IssueKey(pr.Title, body)
	estimate, actual := labeledTimes(body)

	return EffortRecord{
		Title:         pr.Title,
		IssueKey:      issueKey,
		ProjectKey:    p.keys.ProjectKey(issueKey),
		EstimateHours: timeparse.Hours(estimate),
		ActualHours:   timeparse.Hours(actual),
		Author:        pr.Author,
		CreatedAt:     pr.CreatedAt,
		URL:           pr.URL,
	}
}

// labeledTimes scans body text for labeled duration annotations and
// returns the effective estimate and actual tokens. The unit and the
// label are both detected by substring containment on the whole
// matched span, not by position, and the last match of each kind wins.
// Both quirks are kept for compatibility with historical data: a span
// written "Est Time: 2h" matches the pattern but contains neither
// "estimate" nor "actual" and is dropped.
func labeledTimes(body string) (estimate, actual string) {
	estimate, actual = NoIssue, NoIssue
	for _, m := range labeledTimeRe.FindAllStringSubmatch(body, -1) {
		span := strings.ToLower(m[0])
		token := m[1]
		switch {
		case strings.Contains(span, "h"):
			token += "h"
		case strings.Contains(span, "m"), strings.Contains(span, "p"):
			token += "m"
		}
		switch {
		case strings.Contains(span, "estimate"):
			estimate = token
		case strings.Contains(span, "actual"):
			actual = token
		}
	}
	return estimate, actual
}
