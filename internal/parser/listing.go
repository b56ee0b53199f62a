// Package parser extracts applicant records from survey listing pages and
// per-result detail pages.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/gradworks/gradcafe-harvester/internal/pipeline"
)

var (
	resultHrefRe = regexp.MustCompile(`/result/(\d+)`)
	startTermRe  = regexp.MustCompile(`(Fall|Spring|Summer|Winter)\s+\d{4}`)
)

// ParseListing scans the tabular rows of one survey page and returns the
// primary entries in document order. Rows without a detail link are skipped;
// auxiliary rows (start term, citizenship flags) are folded into the
// preceding primary entry. A page with no primary rows yields an empty
// slice, never an error.
func ParseListing(baseURL string, html []byte) []pipeline.Entry {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil
	}

	entries := make([]pipeline.Entry, 0, 20)
	var current *pipeline.Entry

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() >= 4 {
			if id := resultID(row); id != "" {
				entries = append(entries, pipeline.Entry{
					ResultID:   id,
					University: cleanText(cells.Eq(0)),
					Program:    cleanText(cells.Eq(1)),
					DateAdded:  cleanText(cells.Eq(2)),
					Status:     cleanText(cells.Eq(3)),
					URL:        fmt.Sprintf("%s/result/%s", strings.TrimRight(baseURL, "/"), id),
				})
				current = &entries[len(entries)-1]
				return
			}
		}
		if current == nil {
			return
		}
		row.Find("div").Each(func(_ int, div *goquery.Selection) {
			text := cleanText(div)
			switch {
			case startTermRe.MatchString(text):
				current.StartTerm = text
			case isCitizenship(text):
				if strings.Contains(strings.ToLower(text), "inter") {
					current.Citizenship = "International"
				} else {
					current.Citizenship = "US"
				}
			}
		})
	})

	return entries
}

func resultID(row *goquery.Selection) string {
	id := ""
	row.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if m := resultHrefRe.FindStringSubmatch(href); m != nil {
			id = m[1]
			return false
		}
		return true
	})
	return id
}

func isCitizenship(text string) bool {
	switch strings.ToLower(text) {
	case "international", "us", "u.s.", "american":
		return true
	}
	return false
}

// cleanText collapses the visible text of a selection to single-spaced,
// trimmed form.
func cleanText(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}
