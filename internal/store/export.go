package store

import (
	"fmt"

	"github.com/pavelanni/studyhub/internal/model"
)

// ExportSessions builds export-ready session results. An empty owner exports
// every owner's sessions. Sessions without answers are skipped.
func (s *Store) ExportSessions(owner string) ([]model.SessionResult, error) {
	query := `SELECT owner, ` + sessionColumns + ` FROM practice_sessions WHERE questions_answered > 0`
	var args []any
	if owner != "" {
		query += ` AND owner = ?`
		args = append(args, owner)
	}
	query += ` ORDER BY owner, start_time DESC, session_id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var results []model.SessionResult
	for rows.Next() {
		var sessOwner string
		sess, err := scanSession(ownerScanner{row: rows, owner: &sessOwner})
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		results = append(results, model.SessionResult{
			Owner:             sessOwner,
			SessionID:         sess.SessionID,
			Source:            sess.Source,
			Filters:           sess.Filters,
			StartTime:         sess.StartTime,
			EndTime:           sess.EndTime,
			TotalQuestions:    sess.TotalQuestions,
			QuestionsAnswered: sess.QuestionsAnswered,
			CorrectCount:      sess.CorrectCount,
			Accuracy:          model.Accuracy(sess.CorrectCount, sess.QuestionsAnswered),
		})
	}
	return results, rows.Err()
}

// ownerScanner reads a leading owner column before the session columns.
type ownerScanner struct {
	row   rowScanner
	owner *string
}

func (o ownerScanner) Scan(dest ...any) error {
	return o.row.Scan(append([]any{o.owner}, dest...)...)
}
