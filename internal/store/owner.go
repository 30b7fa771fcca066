package store

import (
	"database/sql"
	"log/slog"
	"sort"
	"time"

	"github.com/pavelanni/studyhub/internal/model"
)

// sqliteTimeLayout is how modernc.org/sqlite writes time.Time values.
const sqliteTimeLayout = "2006-01-02 15:04:05.999999999-07:00"

// OwnerSummaries aggregates sessions, wrong questions and favorites per
// owner, most recently active first.
func (s *Store) OwnerSummaries() ([]model.OwnerSummary, error) {
	byOwner := make(map[string]*model.OwnerSummary)
	get := func(owner string) *model.OwnerSummary {
		o, ok := byOwner[owner]
		if !ok {
			o = &model.OwnerSummary{Owner: owner}
			byOwner[owner] = o
		}
		return o
	}

	rows, err := s.db.Query(
		`SELECT owner, COUNT(*), COALESCE(SUM(questions_answered), 0), COALESCE(SUM(correct_count), 0), MAX(updated_at)
		 FROM practice_sessions GROUP BY owner`,
	)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var owner string
		var sessions, answered, correct int
		var last sql.NullString
		if err := rows.Scan(&owner, &sessions, &answered, &correct, &last); err != nil {
			rows.Close()
			return nil, err
		}
		o := get(owner)
		o.Sessions, o.Answered, o.Correct = sessions, answered, correct
		if last.Valid {
			if t, err := time.Parse(sqliteTimeLayout, last.String); err == nil {
				o.LastActive = t
			} else {
				slog.Debug("unparsed session timestamp", "owner", owner, "value", last.String)
			}
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, c := range []struct {
		table string
		set   func(*model.OwnerSummary, int)
	}{
		{"wrong_questions", func(o *model.OwnerSummary, n int) { o.Wrong = n }},
		{"favorites", func(o *model.OwnerSummary, n int) { o.Favorites = n }},
	} {
		counts, err := s.countByOwner(c.table)
		if err != nil {
			return nil, err
		}
		for owner, n := range counts {
			c.set(get(owner), n)
		}
	}

	out := make([]model.OwnerSummary, 0, len(byOwner))
	for _, o := range byOwner {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActive.Equal(out[j].LastActive) {
			return out[i].LastActive.After(out[j].LastActive)
		}
		return out[i].Owner < out[j].Owner
	})
	return out, nil
}

func (s *Store) countByOwner(table string) (map[string]int, error) {
	rows, err := s.db.Query(`SELECT owner, COUNT(*) FROM ` + table + ` GROUP BY owner`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var owner string
		var n int
		if err := rows.Scan(&owner, &n); err != nil {
			return nil, err
		}
		counts[owner] = n
	}
	return counts, rows.Err()
}
