package model

import (
	"fmt"
	"time"
)

// HistoryTTL is the wall-clock age after which a mode history is stale.
const HistoryTTL = 24 * time.Hour

// ModeHistory is the answer history of one practice mode.
//
// Answered[q] is true exactly when Results[q] exists, and Correct only holds
// keys present in Results.
type ModeHistory struct {
	Answered  map[int64]bool         `json:"answered"`
	Correct   map[int64]bool         `json:"correct"`
	Results   map[int64]AnswerRecord `json:"results"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewModeHistory returns an empty history.
func NewModeHistory() ModeHistory {
	return ModeHistory{
		Answered: make(map[int64]bool),
		Correct:  make(map[int64]bool),
		Results:  make(map[int64]AnswerRecord),
	}
}

// Expired reports whether the history is older than HistoryTTL at now.
func (h ModeHistory) Expired(now time.Time) bool {
	return !h.Timestamp.IsZero() && now.Sub(h.Timestamp) >= HistoryTTL
}

// Upsert writes rec, replacing any earlier record for the same question.
func (h *ModeHistory) Upsert(rec AnswerRecord) {
	h.ensure()
	h.Results[rec.QuestionID] = rec
	h.Answered[rec.QuestionID] = true
	if rec.IsCorrect {
		h.Correct[rec.QuestionID] = true
	} else {
		delete(h.Correct, rec.QuestionID)
	}
}

// Remove drops every trace of questionID.
func (h *ModeHistory) Remove(questionID int64) {
	h.ensure()
	delete(h.Results, questionID)
	delete(h.Answered, questionID)
	delete(h.Correct, questionID)
}

// AnsweredCount is the number of answered questions.
func (h ModeHistory) AnsweredCount() int {
	return len(h.Answered)
}

// CorrectCount is the number of questions whose latest answer was correct.
func (h ModeHistory) CorrectCount() int {
	return len(h.Correct)
}

// Record returns the answer record for questionID, if any.
func (h ModeHistory) Record(questionID int64) (AnswerRecord, bool) {
	rec, ok := h.Results[questionID]
	return rec, ok
}

// Validate checks the answered/correct/results invariant.
func (h ModeHistory) Validate() error {
	for id, ok := range h.Answered {
		if !ok {
			return fmt.Errorf("question %d: answered flag stored as false", id)
		}
		if _, found := h.Results[id]; !found {
			return fmt.Errorf("question %d: answered without result", id)
		}
	}
	for id := range h.Results {
		if !h.Answered[id] {
			return fmt.Errorf("question %d: result without answered flag", id)
		}
	}
	for id := range h.Correct {
		if _, found := h.Results[id]; !found {
			return fmt.Errorf("question %d: correct without result", id)
		}
	}
	return nil
}

// Repair rebuilds Answered and Correct from Results. Results is the source
// of truth for histories persisted by older or interrupted writers.
func (h *ModeHistory) Repair() {
	answered := make(map[int64]bool, len(h.Results))
	correct := make(map[int64]bool)
	for id, rec := range h.Results {
		answered[id] = true
		if rec.IsCorrect {
			correct[id] = true
		}
	}
	h.Answered = answered
	h.Correct = correct
	if h.Results == nil {
		h.Results = make(map[int64]AnswerRecord)
	}
}

func (h *ModeHistory) ensure() {
	if h.Answered == nil {
		h.Answered = make(map[int64]bool)
	}
	if h.Correct == nil {
		h.Correct = make(map[int64]bool)
	}
	if h.Results == nil {
		h.Results = make(map[int64]AnswerRecord)
	}
}
