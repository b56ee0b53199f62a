// Package pipeline defines core types shared across the harvest, enrichment,
// and sync stages.
package pipeline

import "time"

// Entry is one applicant result as scraped from the survey listing, merged
// with its detail page. All fields are strings; an empty string means the
// source did not provide the value. Keys are never absent.
type Entry struct {
	ResultID      string `json:"result_id"`
	University    string `json:"university"`
	Program       string `json:"program_name"`
	DegreeType    string `json:"degree_type"`
	DateAdded     string `json:"date_added"`
	Status        string `json:"applicant_status"`
	StartTerm     string `json:"start_term"`
	Citizenship   string `json:"International/US"`
	Comments      string `json:"comments"`
	URL           string `json:"url_link"`
	GPA           string `json:"gpa"`
	GREGeneral    string `json:"gre_general"`
	GREVerbal     string `json:"gre_verbal"`
	GREAnalytical string `json:"gre_analytical_writing"`
}

// EnrichedEntry is an Entry plus the two canonical fields produced by the
// normalization capability. The JSON keys match the historical NDJSON schema.
type EnrichedEntry struct {
	Entry
	LLMProgram    string `json:"llm-generated-program"`
	LLMUniversity string `json:"llm-generated-university"`
}

// HarvestResult is emitted by a single harvest run.
type HarvestResult struct {
	Entries        []Entry
	PagesScanned   int
	DetailFailures int
}

// EnrichReport summarizes one enrichment pass. Records holds the batch that
// was appended to history, in staged order.
type EnrichReport struct {
	Records   []EnrichedEntry
	Processed int
	Failed    int
	FirstErr  error
}

// RunStatus is the terminal state reported through the run gate.
type RunStatus string

// Run status values written to the shared status record.
const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusError    RunStatus = "error"
)

// RunReport is returned by a full pull run.
type RunReport struct {
	RunID          string
	NewRecords     int
	PagesScanned   int
	DetailFailures int
	EnrichFailures int
	Inserted       int64
	Elapsed        time.Duration
}
