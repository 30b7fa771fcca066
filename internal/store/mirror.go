package store

import (
	"time"

	"github.com/pavelanni/studyhub/internal/model"
)

// RecordAttempt stores one judged submission.
func (s *Store) RecordAttempt(owner, sessionID string, questionID int64, submitted string, correct bool) error {
	_, err := s.db.Exec(
		`INSERT INTO attempts (owner, session_id, question_id, submitted_answer, is_correct, answered_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		owner, sessionID, questionID, submitted, correct, time.Now(),
	)
	return err
}

// CountAttempts returns the number of attempts recorded for owner.
func (s *Store) CountAttempts(owner string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM attempts WHERE owner = ?`, owner).Scan(&count)
	return count, err
}

// AddWrong adds a question to owner's wrong set. Existing entries are kept
// as they are.
func (s *Store) AddWrong(owner string, questionID int64, submitted string) error {
	_, err := s.db.Exec(
		`INSERT INTO wrong_questions (owner, question_id, submitted_answer, added_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(owner, question_id) DO NOTHING`,
		owner, questionID, submitted, time.Now(),
	)
	return err
}

// RemoveWrong removes a question from owner's wrong set. Removing an absent
// entry is not an error.
func (s *Store) RemoveWrong(owner string, questionID int64) error {
	_, err := s.db.Exec(`DELETE FROM wrong_questions WHERE owner = ? AND question_id = ?`, owner, questionID)
	return err
}

// ListWrong returns owner's wrong questions joined with question detail,
// oldest first.
func (s *Store) ListWrong(owner string) ([]model.WrongQuestionEntry, error) {
	rows, err := s.db.Query(
		`SELECT q.id, q.code, q.year, q.type, q.content, q.options, q.answer, q.explanation,
			w.submitted_answer, w.added_at
		 FROM wrong_questions w JOIN questions q ON q.id = w.question_id
		 WHERE w.owner = ? ORDER BY w.added_at, q.id`, owner,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []model.WrongQuestionEntry
	for rows.Next() {
		var e model.WrongQuestionEntry
		var options string
		if err := rows.Scan(&e.ID, &e.Code, &e.Year, &e.Type, &e.Content, &options, &e.CorrectAnswer,
			&e.Explanation, &e.SubmittedAnswer, &e.AddedAt); err != nil {
			return nil, err
		}
		e.Options = decodeOptions(options)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ToggleFavorite flips the favorite flag of a question for owner and
// returns the new state.
func (s *Store) ToggleFavorite(owner string, questionID int64) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM favorites WHERE owner = ? AND question_id = ?`, owner, questionID)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return false, tx.Commit()
	}
	if _, err := tx.Exec(
		`INSERT INTO favorites (owner, question_id, added_at) VALUES (?, ?, ?)`,
		owner, questionID, time.Now(),
	); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// ListFavorites returns owner's favorites, oldest first.
func (s *Store) ListFavorites(owner string) ([]model.FavoriteEntry, error) {
	rows, err := s.db.Query(
		`SELECT q.id, q.code, q.content, f.added_at
		 FROM favorites f JOIN questions q ON q.id = f.question_id
		 WHERE f.owner = ? ORDER BY f.added_at, q.id`, owner,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []model.FavoriteEntry
	for rows.Next() {
		var e model.FavoriteEntry
		if err := rows.Scan(&e.ID, &e.Code, &e.Content, &e.AddedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
