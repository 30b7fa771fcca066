package practice

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/studyhub/internal/events"
	"github.com/pavelanni/studyhub/internal/model"
)

// maxLocalSessions bounds the locally kept session list.
const maxLocalSessions = 200

// SessionUpdate carries recomputed session counters. Values overwrite the
// stored ones; they are never added.
type SessionUpdate struct {
	QuestionsAnswered int
	CorrectCount      int
	LastQuestionID    int64
}

// SessionManager owns the lifecycle of practice sessions and their
// reconciliation with the remote session store.
type SessionManager struct {
	slots   *slots
	remote  SessionStore
	history *HistoryStore
	bus     *events.Bus
	now     func() time.Time
	log     *slog.Logger
	newID   func() string
}

// Create starts a new session and makes it current. A still-active previous
// session is ended first.
func (m *SessionManager) Create(ctx context.Context, filters model.FilterSpec, totalQuestions int, source model.Source) (string, error) {
	if err := m.End(ctx); err != nil {
		return "", fmt.Errorf("end previous session: %w", err)
	}
	if source == "" {
		source = model.SourceAll
	}
	sess := model.AnswerSession{
		SessionID:      m.newID(),
		StartTime:      m.now(),
		TotalQuestions: totalQuestions,
		Source:         source,
		Filters:        filters.Normalize(),
	}
	if err := m.persist(ctx, sess); err != nil {
		return "", err
	}
	m.log.Info("practice session started", "session_id", sess.SessionID, "source", source, "total", totalQuestions)
	m.bus.Publish(events.SessionUpdated, sess)
	return sess.SessionID, nil
}

// Current returns the current session, if any. An ended session stays
// current until the next Create so that End remains idempotent.
func (m *SessionManager) Current(ctx context.Context) (model.AnswerSession, bool, error) {
	sess, err := load[*model.AnswerSession](ctx, m.slots, keyCurrentSession)
	if err != nil {
		return model.AnswerSession{}, false, fmt.Errorf("load current session: %w", err)
	}
	if sess == nil || sess.SessionID == "" {
		return model.AnswerSession{}, false, nil
	}
	return *sess, true, nil
}

// ActiveID returns the id of the current session while it is active, or "".
func (m *SessionManager) ActiveID(ctx context.Context) string {
	sess, ok, err := m.Current(ctx)
	if err != nil || !ok || !sess.Active() {
		return ""
	}
	return sess.SessionID
}

// Update overwrites the counters of the active session. Without an active
// session it does nothing.
func (m *SessionManager) Update(ctx context.Context, u SessionUpdate) error {
	var updated model.AnswerSession
	var changed bool
	_, err := update(ctx, m.slots, keyCurrentSession, func(cur **model.AnswerSession) (bool, error) {
		if *cur == nil || !(*cur).Active() {
			return false, nil
		}
		s := *cur
		s.QuestionsAnswered = u.QuestionsAnswered
		s.CorrectCount = u.CorrectCount
		if u.LastQuestionID != 0 {
			s.LastQuestionID = u.LastQuestionID
		}
		updated, changed = *s, true
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("update current session: %w", err)
	}
	if !changed {
		m.log.Debug("no active session to update")
		return nil
	}
	if err := m.appendLocal(ctx, updated); err != nil {
		return err
	}
	m.pushRemote(ctx, updated)
	m.bus.Publish(events.SessionUpdated, updated)
	return nil
}

// Recompute refreshes the active session's counters from the history of its
// mode.
func (m *SessionManager) Recompute(ctx context.Context, lastQuestionID int64) error {
	sess, ok, err := m.Current(ctx)
	if err != nil || !ok || !sess.Active() {
		return err
	}
	hist, err := m.history.Load(ctx, sess.Source.Mode())
	if err != nil {
		return err
	}
	return m.Update(ctx, SessionUpdate{
		QuestionsAnswered: hist.AnsweredCount(),
		CorrectCount:      hist.CorrectCount(),
		LastQuestionID:    lastQuestionID,
	})
}

// End stamps the current session's end time. Calling it again, or without a
// current session, is a no-op.
func (m *SessionManager) End(ctx context.Context) error {
	var ended model.AnswerSession
	var changed bool
	_, err := update(ctx, m.slots, keyCurrentSession, func(cur **model.AnswerSession) (bool, error) {
		if *cur == nil || !(*cur).Active() {
			return false, nil
		}
		t := m.now()
		(*cur).EndTime = &t
		ended, changed = **cur, true
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if !changed {
		return nil
	}
	if err := m.appendLocal(ctx, ended); err != nil {
		return err
	}
	m.pushRemote(ctx, ended)
	m.log.Info("practice session ended", "session_id", ended.SessionID,
		"answered", ended.QuestionsAnswered, "correct", ended.CorrectCount)
	m.bus.Publish(events.SessionEnded, ended)
	return nil
}

// LocalSessions returns the locally persisted session list.
func (m *SessionManager) LocalSessions(ctx context.Context) ([]model.AnswerSession, error) {
	sessions, err := load[[]model.AnswerSession](ctx, m.slots, keySessions)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	return sessions, nil
}

// Reconcile merges remote and local sessions (see MergeSessions). Remote
// failures degrade to local-only output and are never returned.
func (m *SessionManager) Reconcile(ctx context.Context) []model.AnswerSession {
	var remote []model.AnswerSession
	if m.remote != nil {
		var err error
		remote, err = m.remote.ListSessions(ctx)
		if err != nil {
			m.log.Warn("remote session list unavailable, showing local history", "error", err)
			remote = nil
		}
	}
	local, err := m.LocalSessions(ctx)
	if err != nil {
		m.log.Warn("local session list unreadable", "error", err)
	}
	var current *model.AnswerSession
	if cur, ok, err := m.Current(ctx); err == nil && ok {
		current = &cur
	}
	return MergeSessions(remote, local, current)
}

// Migrate pushes sessions that exist only locally, plus the legacy flat
// history blob, to the remote store. It succeeds at most once per client; a
// failed attempt is retried on the next call.
func (m *SessionManager) Migrate(ctx context.Context) error {
	if m.remote == nil {
		return nil
	}
	done, err := load[bool](ctx, m.slots, keyMigrated)
	if err != nil {
		return fmt.Errorf("load migration flag: %w", err)
	}
	if done {
		return nil
	}

	remote, err := m.remote.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("list remote sessions: %w", err)
	}
	known := make(map[string]bool, len(remote))
	for _, s := range remote {
		known[s.SessionID] = true
	}
	local, err := m.LocalSessions(ctx)
	if err != nil {
		return err
	}
	var pending []model.AnswerSession
	for _, s := range local {
		if !known[s.SessionID] && s.QuestionsAnswered > 0 {
			pending = append(pending, s)
		}
	}
	legacy, err := load[[]model.AnswerRecord](ctx, m.slots, keyLegacyHistory)
	if err != nil {
		m.log.Warn("ignoring unreadable legacy history", "error", err)
		legacy = nil
	}

	if len(pending) > 0 || len(legacy) > 0 {
		if err := m.remote.MigrateSessions(ctx, pending, legacy); err != nil {
			return fmt.Errorf("migrate sessions: %w", err)
		}
		m.log.Info("migrated local sessions", "sessions", len(pending), "legacy_records", len(legacy))
	}
	if len(legacy) > 0 {
		if err := m.slots.delete(ctx, keyLegacyHistory); err != nil {
			return err
		}
	}
	_, err = update(ctx, m.slots, keyMigrated, func(v *bool) (bool, error) {
		*v = true
		return true, nil
	})
	return err
}

func (m *SessionManager) persist(ctx context.Context, sess model.AnswerSession) error {
	_, err := update(ctx, m.slots, keyCurrentSession, func(cur **model.AnswerSession) (bool, error) {
		s := sess
		*cur = &s
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("save current session: %w", err)
	}
	if err := m.appendLocal(ctx, sess); err != nil {
		return err
	}
	m.pushRemote(ctx, sess)
	return nil
}

// appendLocal upserts sess into the local session list by id.
func (m *SessionManager) appendLocal(ctx context.Context, sess model.AnswerSession) error {
	_, err := update(ctx, m.slots, keySessions, func(list *[]model.AnswerSession) (bool, error) {
		for i := range *list {
			if (*list)[i].SessionID == sess.SessionID {
				(*list)[i] = sess
				return true, nil
			}
		}
		*list = append(*list, sess)
		if len(*list) > maxLocalSessions {
			*list = (*list)[len(*list)-maxLocalSessions:]
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("save session list: %w", err)
	}
	return nil
}

func (m *SessionManager) pushRemote(ctx context.Context, sess model.AnswerSession) {
	if m.remote == nil {
		return
	}
	if err := m.remote.UpsertSession(ctx, sess); err != nil {
		m.log.Warn("remote session upsert failed, keeping local copy", "session_id", sess.SessionID, "error", err)
	}
}

func newSessionID() string {
	return uuid.NewString()
}

// Origin ranks where a session copy came from. Higher origins win when the
// same session id appears more than once.
type Origin int

const (
	OriginLocal Origin = iota
	OriginCurrent
	OriginRemote
)

type rankedSession struct {
	origin Origin
	sess   model.AnswerSession
}

// SessionMerger folds session copies from several origins. The result does
// not depend on the order of Add calls.
type SessionMerger struct {
	byID map[string]rankedSession
}

// NewSessionMerger returns an empty merger.
func NewSessionMerger() *SessionMerger {
	return &SessionMerger{byID: make(map[string]rankedSession)}
}

// Add folds sessions from origin. The current session only counts while it
// is active and has answers.
func (m *SessionMerger) Add(origin Origin, sessions ...model.AnswerSession) {
	for _, s := range sessions {
		if s.SessionID == "" {
			continue
		}
		if origin == OriginCurrent && (!s.Active() || s.QuestionsAnswered == 0) {
			continue
		}
		cand := rankedSession{origin: origin, sess: s}
		if old, ok := m.byID[s.SessionID]; !ok || prefer(cand, old) {
			m.byID[s.SessionID] = cand
		}
	}
}

// prefer reports whether a should replace b. It is a strict total order on
// differing copies so that folding is commutative.
func prefer(a, b rankedSession) bool {
	if a.origin != b.origin {
		return a.origin > b.origin
	}
	if a.sess.QuestionsAnswered != b.sess.QuestionsAnswered {
		return a.sess.QuestionsAnswered > b.sess.QuestionsAnswered
	}
	if a.sess.CorrectCount != b.sess.CorrectCount {
		return a.sess.CorrectCount > b.sess.CorrectCount
	}
	if (a.sess.EndTime != nil) != (b.sess.EndTime != nil) {
		return a.sess.EndTime != nil
	}
	if a.sess.EndTime != nil && !a.sess.EndTime.Equal(*b.sess.EndTime) {
		return a.sess.EndTime.Before(*b.sess.EndTime)
	}
	return a.sess.LastQuestionID > b.sess.LastQuestionID
}

// Result drops sessions without answers and sorts by start time, newest
// first, breaking ties by session id.
func (m *SessionMerger) Result() []model.AnswerSession {
	out := make([]model.AnswerSession, 0, len(m.byID))
	for _, r := range m.byID {
		if r.sess.QuestionsAnswered == 0 {
			continue
		}
		out = append(out, r.sess)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.After(out[j].StartTime)
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out
}

// MergeSessions unions remote and local sessions by id with remote copies
// taking precedence, folds in the active current session when it has
// answers, drops sessions without answers and sorts newest first.
func MergeSessions(remote, local []model.AnswerSession, current *model.AnswerSession) []model.AnswerSession {
	m := NewSessionMerger()
	m.Add(OriginRemote, remote...)
	m.Add(OriginLocal, local...)
	if current != nil {
		m.Add(OriginCurrent, *current)
	}
	return m.Result()
}
