// Package normalize cleans scraped text into the schema the store expects.
package normalize

import (
	"regexp"
	"strings"

	"github.com/gradworks/gradcafe-harvester/internal/pipeline"
)

// decisionDateRe matches a day-of-month and month abbreviation after a
// decision token. No year, no calendar validation: "31 feb" passes. This is
// pattern extraction over free text, not date parsing.
var decisionDateRe = regexp.MustCompile(`\b(\d{1,2})\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)\b`)

// Text collapses internal whitespace runs to single spaces and trims the
// ends. It is total: empty input yields empty output.
func Text(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Status folds a free-form applicant status into a compact token. Waitlist
// and interview mentions win outright; accepted/rejected statuses keep the
// decision token plus a day+month suffix when one is present.
func Status(s string) string {
	s = strings.ToLower(Text(s))
	if s == "" {
		return ""
	}
	if strings.Contains(s, "wait") {
		return "waitlisted"
	}
	if strings.Contains(s, "interview") {
		return "interview"
	}
	if strings.HasPrefix(s, "accepted") || strings.HasPrefix(s, "rejected") {
		decision := strings.TrimSuffix(strings.Fields(s)[0], ":")
		if m := decisionDateRe.FindStringSubmatch(s); m != nil {
			return decision + ": " + m[1] + " " + m[2]
		}
		return decision
	}
	return s
}

// Entry returns a copy of e with every text field whitespace-normalized and
// the status folded. Parsed entries stay immutable; callers get a new value.
func Entry(e pipeline.Entry) pipeline.Entry {
	return pipeline.Entry{
		ResultID:      Text(e.ResultID),
		University:    Text(e.University),
		Program:       Text(e.Program),
		DegreeType:    Text(e.DegreeType),
		DateAdded:     Text(e.DateAdded),
		Status:        Status(e.Status),
		StartTerm:     Text(e.StartTerm),
		Citizenship:   Text(e.Citizenship),
		Comments:      Text(e.Comments),
		URL:           Text(e.URL),
		GPA:           Text(e.GPA),
		GREGeneral:    Text(e.GREGeneral),
		GREVerbal:     Text(e.GREVerbal),
		GREAnalytical: Text(e.GREAnalytical),
	}
}
