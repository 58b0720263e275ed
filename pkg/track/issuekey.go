package track

import (
	"regexp"
	"strings"
)

const (
	// NoIssue is the sentinel for records without a ticket identifier.
	NoIssue = "N/A"
	// UnknownProject groups records whose ticket could not be classified.
	UnknownProject = "Unknown"
	// DefaultProjectPrefix matches the ticket scheme used in historical
	// report data (e.g. AIP201-106).
	DefaultProjectPrefix = "AIP"
)

// KeyExtractor finds ticket identifiers in free text and derives the
// project portion of the key.
type KeyExtractor struct {
	issueRe   *regexp.Regexp
	projectRe *regexp.Regexp
}

// NewKeyExtractor builds an extractor for the given project prefix. An
// empty prefix falls back to DefaultProjectPrefix.
func NewKeyExtractor(prefix string) *KeyExtractor {
	if prefix == "" {
		prefix = DefaultProjectPrefix
	}
	quoted := regexp.QuoteMeta(prefix)
	return &KeyExtractor{
		issueRe:   regexp.MustCompile(`(?i)` + quoted + `\d+-\d+`),
		projectRe: regexp.MustCompile(`(?i)^(` + quoted + `\d+)`),
	}
}

// IssueKey returns the first ticket identifier found in title, then
// body, uppercased, or NoIssue when neither field contains one.
func (e *KeyExtractor) IssueKey(title, body string) string {
	m := e.issueRe.FindString(title)
	if m == "" {
		m = e.issueRe.FindString(body)
	}
	if m == "" {
		return NoIssue
	}
	return strings.ToUpper(m)
}

// ProjectKey derives the grouping key from an issue key: the uppercased
// prefix-and-project-number portion before the first hyphen, or
// UnknownProject for the sentinel and anything unrecognizable.
func (e *KeyExtractor) ProjectKey(issueKey string) string {
	if issueKey == "" || issueKey == NoIssue {
		return UnknownProject
	}
	if m := e.projectRe.FindStringSubmatch(issueKey); m != nil {
		return strings.ToUpper(m[1])
	}
	return UnknownProject
}
