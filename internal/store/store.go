package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pavelanni/studyhub/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL DEFAULT '',
		year TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		options TEXT NOT NULL DEFAULT '[]',
		answer TEXT NOT NULL DEFAULT '',
		explanation TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_questions_year_type ON questions(year, type);

	CREATE TABLE IF NOT EXISTS practice_sessions (
		session_id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		start_time DATETIME NOT NULL,
		end_time DATETIME,
		questions_answered INTEGER NOT NULL DEFAULT 0,
		correct_count INTEGER NOT NULL DEFAULT 0,
		total_questions INTEGER NOT NULL DEFAULT 0,
		source TEXT NOT NULL DEFAULT 'all',
		filters TEXT NOT NULL DEFAULT '{}',
		last_question_id INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_practice_sessions_owner ON practice_sessions(owner, start_time);

	CREATE TABLE IF NOT EXISTS attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner TEXT NOT NULL DEFAULT '',
		session_id TEXT NOT NULL DEFAULT '',
		question_id INTEGER NOT NULL,
		submitted_answer TEXT NOT NULL,
		is_correct INTEGER NOT NULL,
		answered_at DATETIME NOT NULL,
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);

	CREATE TABLE IF NOT EXISTS wrong_questions (
		owner TEXT NOT NULL,
		question_id INTEGER NOT NULL,
		submitted_answer TEXT NOT NULL DEFAULT '',
		added_at DATETIME NOT NULL,
		PRIMARY KEY (owner, question_id),
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);

	CREATE TABLE IF NOT EXISTS favorites (
		owner TEXT NOT NULL,
		question_id INTEGER NOT NULL,
		added_at DATETIME NOT NULL,
		PRIMARY KEY (owner, question_id),
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);

	CREATE TABLE IF NOT EXISTS kv_entries (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

const questionColumns = `id, code, year, type, content, options, answer, explanation`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row rowScanner) (model.Question, error) {
	var q model.Question
	var options string
	if err := row.Scan(&q.ID, &q.Code, &q.Year, &q.Type, &q.Content, &options, &q.Answer, &q.Explanation); err != nil {
		return q, err
	}
	q.Options = decodeOptions(options)
	return q, nil
}

func decodeOptions(raw string) []string {
	var options []string
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &options); err != nil {
		// Older imports stored options newline-separated.
		return strings.Split(raw, "\n")
	}
	return options
}

// InsertQuestion stores a question.
func (s *Store) InsertQuestion(q model.Question) (int64, error) {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return 0, err
	}
	if q.Options == nil {
		options = []byte("[]")
	}
	res, err := s.db.Exec(
		`INSERT INTO questions (code, year, type, content, options, answer, explanation)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		q.Code, q.Year, q.Type, q.Content, string(options), q.Answer, q.Explanation,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetQuestion returns a question by ID.
func (s *Store) GetQuestion(id int64) (model.Question, error) {
	return scanQuestion(s.db.QueryRow(`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id))
}

// SetExplanation stores an explanation for a question that had none.
func (s *Store) SetExplanation(id int64, explanation string) error {
	_, err := s.db.Exec(
		`UPDATE questions SET explanation = ? WHERE id = ? AND explanation = ''`, explanation, id,
	)
	return err
}

// SearchQuestions returns one page of questions matching the filter, ordered
// by id, together with the total number of matches. page is 1-based.
func (s *Store) SearchQuestions(f model.FilterSpec, page, pageSize int) ([]model.Question, int, error) {
	where, args := filterClause(f)

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	query := `SELECT ` + questionColumns + ` FROM questions` + where + ` ORDER BY id`
	if pageSize > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, pageSize, (page-1)*pageSize)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, 0, err
		}
		questions = append(questions, q)
	}
	return questions, total, rows.Err()
}

func filterClause(f model.FilterSpec) (string, []any) {
	f = f.Normalize()
	var conds []string
	var args []any
	if len(f.Years) > 0 {
		conds = append(conds, `year IN (`+placeholders(len(f.Years))+`)`)
		for _, y := range f.Years {
			args = append(args, y)
		}
	}
	if len(f.Types) > 0 {
		conds = append(conds, `type IN (`+placeholders(len(f.Types))+`)`)
		for _, t := range f.Types {
			args = append(args, t)
		}
	}
	if f.Keyword != "" {
		conds = append(conds, `(content LIKE ? OR code LIKE ?)`)
		like := "%" + f.Keyword + "%"
		args = append(args, like, like)
	}
	if f.Search != "" {
		conds = append(conds, `(content LIKE ? OR explanation LIKE ? OR options LIKE ?)`)
		like := "%" + f.Search + "%"
		args = append(args, like, like, like)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return ` WHERE ` + strings.Join(conds, ` AND `), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// QuestionCount returns the number of questions in the database.
func (s *Store) QuestionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}

// GetImportedFileHash returns the content hash recorded for an imported file,
// or "" if the file was never imported.
func (s *Store) GetImportedFileHash(path string) (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT hash FROM imported_files WHERE path = ?`, path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

// SetImportedFileHash records the content hash of an imported file.
func (s *Store) SetImportedFileHash(path, hash string) error {
	_, err := s.db.Exec(
		`INSERT INTO imported_files (path, hash) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET hash = ?`,
		path, hash, hash,
	)
	return err
}
