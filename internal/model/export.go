package model

import "time"

// SessionExport is the top-level JSON structure for practice session export.
type SessionExport struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Owner       string          `json:"owner,omitempty"`
	Sessions    []SessionResult `json:"sessions"`
}

// SessionResult holds one owner's practice session for export.
type SessionResult struct {
	Owner             string     `json:"owner"`
	SessionID         string     `json:"session_id"`
	Source            Source     `json:"source"`
	Filters           FilterSpec `json:"filters"`
	StartTime         time.Time  `json:"start_time"`
	EndTime           *time.Time `json:"end_time,omitempty"`
	TotalQuestions    int        `json:"total_questions"`
	QuestionsAnswered int        `json:"questions_answered"`
	CorrectCount      int        `json:"correct_count"`
	Accuracy          float64    `json:"accuracy"`
}

// Accuracy is correct/answered as a percentage, 0 when nothing was answered.
func Accuracy(correct, answered int) float64 {
	if answered == 0 {
		return 0
	}
	return float64(correct) / float64(answered) * 100
}

// OwnerSummary aggregates one owner's activity for the admin view.
type OwnerSummary struct {
	Owner      string    `json:"owner"`
	Sessions   int       `json:"sessions"`
	Answered   int       `json:"answered"`
	Correct    int       `json:"correct"`
	Wrong      int       `json:"wrong"`
	Favorites  int       `json:"favorites"`
	LastActive time.Time `json:"last_active"`
}
