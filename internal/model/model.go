package model

import (
	"context"
	"time"
)

// Identity scopes remote reads and writes. Either field may be empty; with
// both empty the caller is anonymous and unscoped.
type Identity struct {
	UserID          string
	ClientSessionID string
}

// Owner returns the storage owner key for the identity, or "" when unscoped.
func (id Identity) Owner() string {
	switch {
	case id.UserID != "":
		return "user:" + id.UserID
	case id.ClientSessionID != "":
		return "anon:" + id.ClientSessionID
	}
	return ""
}

// IsZero reports whether the identity carries no user or client session.
func (id Identity) IsZero() bool {
	return id.UserID == "" && id.ClientSessionID == ""
}

type identityCtxKey struct{}

// ContextWithIdentity stores an identity in the request context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// IdentityFromContext retrieves the identity from context, or the zero identity.
func IdentityFromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(identityCtxKey{}).(Identity)
	return id
}

// Mode is one of the three independent practice contexts.
type Mode string

const (
	ModeNormal    Mode = "normal"
	ModeWrong     Mode = "wrong"
	ModeFavorites Mode = "favorites"
)

// Source is the question source a session practices from.
type Source string

const (
	SourceAll       Source = "all"
	SourceWrong     Source = "wrong"
	SourceFavorites Source = "favorites"
)

// Mode maps a session source to the history mode it writes to.
func (s Source) Mode() Mode {
	switch s {
	case SourceWrong:
		return ModeWrong
	case SourceFavorites:
		return ModeFavorites
	}
	return ModeNormal
}

// Source maps a mode back to its session source.
func (m Mode) Source() Source {
	switch m {
	case ModeWrong:
		return SourceWrong
	case ModeFavorites:
		return SourceFavorites
	}
	return SourceAll
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeNormal || m == ModeWrong || m == ModeFavorites
}

// Question is a question as returned by the lookup service.
type Question struct {
	ID          int64    `json:"id"`
	Code        string   `json:"code"`
	Year        string   `json:"year"`
	Type        string   `json:"type"`
	Content     string   `json:"content"`
	Options     []string `json:"options,omitempty"`
	Answer      string   `json:"answer,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
}

// QuestionRef is one entry of a navigation list.
type QuestionRef struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
}

// QuestionPage is one page of a filtered question search.
type QuestionPage struct {
	Questions []Question `json:"questions"`
	Total     int        `json:"total"`
	Page      int        `json:"page"`
	PageSize  int        `json:"page_size"`
}

// AnswerRecord is the outcome of one submission. A later submission for the
// same question replaces it.
type AnswerRecord struct {
	QuestionID      int64     `json:"question_id"`
	SubmittedAnswer string    `json:"submitted_answer"`
	IsCorrect       bool      `json:"is_correct"`
	CorrectAnswer   string    `json:"correct_answer"`
	Explanation     string    `json:"explanation"`
	AnsweredAt      time.Time `json:"answered_at"`
}

// AnswerSession is one continuous practice attempt.
type AnswerSession struct {
	SessionID         string     `json:"session_id"`
	StartTime         time.Time  `json:"start_time"`
	EndTime           *time.Time `json:"end_time,omitempty"`
	QuestionsAnswered int        `json:"questions_answered"`
	CorrectCount      int        `json:"correct_count"`
	TotalQuestions    int        `json:"total_questions"`
	Source            Source     `json:"source"`
	Filters           FilterSpec `json:"filters"`
	LastQuestionID    int64      `json:"last_question_id,omitempty"`
}

// Active reports whether the session has not been ended.
func (s AnswerSession) Active() bool {
	return s.EndTime == nil
}

// FilteredQuestionList is the cached navigation list for one filter set.
// Partial lists carry only ActualTotal (and possibly a prefix of Questions).
type FilteredQuestionList struct {
	Questions   []QuestionRef `json:"questions"`
	Filters     FilterSpec    `json:"filters"`
	ActualTotal int           `json:"actual_total"`
	Partial     bool          `json:"partial"`
	Timestamp   time.Time     `json:"timestamp"`
}

// WrongQuestionEntry is a snapshot of a question answered incorrectly.
type WrongQuestionEntry struct {
	ID              int64     `json:"id"`
	Code            string    `json:"code"`
	Year            string    `json:"year"`
	Type            string    `json:"type"`
	Content         string    `json:"content"`
	Options         []string  `json:"options,omitempty"`
	CorrectAnswer   string    `json:"correct_answer"`
	Explanation     string    `json:"explanation"`
	SubmittedAnswer string    `json:"submitted_answer"`
	AddedAt         time.Time `json:"added_at"`
}

// FavoriteEntry is a cached favorite detail used for list rendering only.
type FavoriteEntry struct {
	ID      int64     `json:"id"`
	Code    string    `json:"code"`
	Content string    `json:"content"`
	AddedAt time.Time `json:"added_at"`
}

// JudgeRequest is sent to the answer judge.
type JudgeRequest struct {
	QuestionID      int64  `json:"question_id"`
	SubmittedAnswer string `json:"submitted_answer"`
	SessionID       string `json:"session_id,omitempty"`
}

// JudgeResult is the judge's verdict.
type JudgeResult struct {
	IsCorrect     bool   `json:"is_correct"`
	CorrectAnswer string `json:"correct_answer"`
	Explanation   string `json:"explanation"`
}

// QuestionImport is used for loading questions from JSON or XLSX.
type QuestionImport struct {
	Code        string   `json:"code"`
	Year        string   `json:"year"`
	Type        string   `json:"type"`
	Content     string   `json:"content"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation"`
}

// ServerConfig holds runtime backend parameters set via CLI flags.
type ServerConfig struct {
	JWTSecret      string
	AllowAnonymous bool          // accept X-Client-Session when no token is given
	MaxPageSize    int           // upper bound for search page_size
	SessionTTL     time.Duration // empty sessions older than this are purged
}
