package mediadna

import "fmt"

// Outcome is what happened to one file offered for indexing.
type Outcome string

const (
	OutcomeInserted       Outcome = "inserted"
	OutcomeAlreadyPresent Outcome = "already_present"
	OutcomeUnreadable     Outcome = "unreadable"
	OutcomeUnhashable     Outcome = "unhashable"
	OutcomeDuplicateKey   Outcome = "duplicate_key"
	OutcomeFailed         Outcome = "failed"
	OutcomeSkipped        Outcome = "skipped"
)

// ProgressFunc observes every file processed by AddPaths.
type ProgressFunc func(path string, outcome Outcome)

// AddSummary counts the outcomes of a bulk add.
type AddSummary struct {
	Hashed         int `json:"hashed"`
	Inserted       int `json:"inserted"`
	AlreadyPresent int `json:"already_present"`
	Unreadable     int `json:"unreadable"`
	Unhashable     int `json:"unhashable"`
	DuplicateKey   int `json:"duplicate_key"`
	Failed         int `json:"failed"`
}

func (s *AddSummary) record(o Outcome) {
	switch o {
	case OutcomeInserted:
		s.Inserted++
	case OutcomeAlreadyPresent:
		s.AlreadyPresent++
	case OutcomeUnreadable:
		s.Unreadable++
	case OutcomeUnhashable:
		s.Unhashable++
	case OutcomeDuplicateKey:
		s.DuplicateKey++
	case OutcomeFailed:
		s.Failed++
	}
}

// Skipped is every file that did not end up inserted.
func (s AddSummary) Skipped() int {
	return s.AlreadyPresent + s.Unreadable + s.Unhashable + s.DuplicateKey + s.Failed
}

func (s AddSummary) String() string {
	return fmt.Sprintf("inserted %d, already present %d, unreadable %d, unhashable %d, duplicate key %d, failed %d",
		s.Inserted, s.AlreadyPresent, s.Unreadable, s.Unhashable, s.DuplicateKey, s.Failed)
}

// ExactMatch selects the store's exact token grouping in FindOptions.
const ExactMatch = -1

type FindOptions struct {
	MatchCaptureTime bool
	// Threshold is the Hamming distance for perceptual matching. Negative
	// means exact token equality.
	Threshold int
}
