package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/studyhub/internal/model"
)

const sessionColumns = `session_id, start_time, end_time, questions_answered, correct_count,
	total_questions, source, filters, last_question_id`

func scanSession(row rowScanner) (model.AnswerSession, error) {
	var sess model.AnswerSession
	var filters string
	var endTime sql.NullTime
	err := row.Scan(&sess.SessionID, &sess.StartTime, &endTime, &sess.QuestionsAnswered, &sess.CorrectCount,
		&sess.TotalQuestions, &sess.Source, &filters, &sess.LastQuestionID)
	if err != nil {
		return sess, err
	}
	if endTime.Valid {
		t := endTime.Time
		sess.EndTime = &t
	}
	if filters != "" {
		if err := json.Unmarshal([]byte(filters), &sess.Filters); err != nil {
			return sess, fmt.Errorf("decode filters for session %s: %w", sess.SessionID, err)
		}
	}
	return sess, nil
}

// UpsertSession inserts or updates a practice session for owner.
// An end time, once stored, is never moved or cleared.
func (s *Store) UpsertSession(owner string, sess model.AnswerSession) error {
	if sess.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	filters, err := json.Marshal(sess.Filters.Normalize())
	if err != nil {
		return err
	}
	if sess.Source == "" {
		sess.Source = model.SourceAll
	}
	res, err := s.db.Exec(
		`INSERT INTO practice_sessions (session_id, owner, start_time, end_time, questions_answered,
			correct_count, total_questions, source, filters, last_question_id, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			end_time = COALESCE(practice_sessions.end_time, excluded.end_time),
			questions_answered = excluded.questions_answered,
			correct_count = excluded.correct_count,
			total_questions = excluded.total_questions,
			last_question_id = excluded.last_question_id,
			updated_at = excluded.updated_at
		 WHERE practice_sessions.owner = excluded.owner`,
		sess.SessionID, owner, sess.StartTime, sess.EndTime, sess.QuestionsAnswered,
		sess.CorrectCount, sess.TotalQuestions, sess.Source, string(filters), sess.LastQuestionID, time.Now(),
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		slog.Warn("session owned by another identity, ignoring upsert", "session_id", sess.SessionID)
	}
	return nil
}

// GetSession returns one session of owner by id.
func (s *Store) GetSession(owner, sessionID string) (model.AnswerSession, error) {
	return scanSession(s.db.QueryRow(
		`SELECT `+sessionColumns+` FROM practice_sessions WHERE owner = ? AND session_id = ?`, owner, sessionID,
	))
}

// ListSessions returns the sessions of owner, newest first.
func (s *Store) ListSessions(owner string) ([]model.AnswerSession, error) {
	rows, err := s.db.Query(
		`SELECT `+sessionColumns+` FROM practice_sessions WHERE owner = ? ORDER BY start_time DESC, session_id`, owner,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []model.AnswerSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// MigrateSessions upserts a batch of locally originated sessions in one
// transaction. Sessions already known to the store keep their stored end time.
func (s *Store) MigrateSessions(owner string, sessions []model.AnswerSession) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	imported := 0
	for _, sess := range sessions {
		if sess.SessionID == "" {
			continue
		}
		filters, err := json.Marshal(sess.Filters.Normalize())
		if err != nil {
			return 0, err
		}
		if sess.Source == "" {
			sess.Source = model.SourceAll
		}
		res, err := tx.Exec(
			`INSERT INTO practice_sessions (session_id, owner, start_time, end_time, questions_answered,
				correct_count, total_questions, source, filters, last_question_id, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(session_id) DO NOTHING`,
			sess.SessionID, owner, sess.StartTime, sess.EndTime, sess.QuestionsAnswered,
			sess.CorrectCount, sess.TotalQuestions, sess.Source, string(filters), sess.LastQuestionID, time.Now(),
		)
		if err != nil {
			return 0, fmt.Errorf("migrate session %s: %w", sess.SessionID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			imported++
		}
	}
	return imported, tx.Commit()
}

// PurgeEmptySessions deletes sessions that never recorded an answer and
// started before cutoff. It returns the number of deleted sessions.
func (s *Store) PurgeEmptySessions(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(
		`DELETE FROM practice_sessions WHERE questions_answered = 0 AND start_time < ?`, cutoff,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
