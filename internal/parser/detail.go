package parser

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DetailFields holds the values harvested from one result detail page.
// Unmatched labels yield empty strings, never absent fields.
type DetailFields struct {
	Program       string
	DegreeType    string
	Comments      string
	GPA           string
	GREGeneral    string
	GREVerbal     string
	GREAnalytical string
}

// The source site renders these literals when an applicant left a numeric
// field blank; they are placeholders, not real scores.
var placeholderScores = map[string]struct{}{
	"0":     {},
	"0.0":   {},
	"0.00":  {},
	"99.99": {},
}

// ParseDetail extracts label/value pairs from a result detail page. Malformed
// or missing structure degrades to empty fields; it never fails.
func ParseDetail(html []byte) DetailFields {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return DetailFields{}
	}

	fields := DetailFields{
		Program:    extractDtDd(doc, "Program"),
		DegreeType: extractDtDd(doc, "Degree Type"),
		Comments:   extractDtDd(doc, "Notes"),
		GPA:        blankPlaceholder(extractDtDd(doc, "Undergrad GPA")),
	}
	fields.GREGeneral, fields.GREVerbal, fields.GREAnalytical = extractGRE(doc)
	return fields
}

// extractDtDd finds a dt whose text matches label and returns the text of
// the dd inside the same parent block.
func extractDtDd(doc *goquery.Document, label string) string {
	value := ""
	doc.Find("dt").EachWithBreak(func(_ int, dt *goquery.Selection) bool {
		if cleanText(dt) != label {
			return true
		}
		value = cleanText(dt.Parent().Find("dd"))
		return false
	})
	return value
}

// extractGRE walks span pairs: a label span ending with ":" followed by the
// value span. Each subsection applies the placeholder rule independently.
func extractGRE(doc *goquery.Document) (general, verbal, analytical string) {
	spans := doc.Find("span")
	spans.Each(func(i int, span *goquery.Selection) {
		label := strings.ToLower(cleanText(span))
		if !strings.HasSuffix(label, ":") || i+1 >= spans.Length() {
			return
		}
		value := blankPlaceholder(cleanText(spans.Eq(i + 1)))
		switch {
		case strings.HasPrefix(label, "gre general"):
			general = value
		case strings.HasPrefix(label, "gre verbal"):
			verbal = value
		case strings.HasPrefix(label, "analytical writing"):
			analytical = value
		}
	})
	return general, verbal, analytical
}

func blankPlaceholder(value string) string {
	if _, ok := placeholderScores[value]; ok {
		return ""
	}
	return value
}
