package practice

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pavelanni/studyhub/internal/kv"
	"github.com/pavelanni/studyhub/internal/model"
)

var errOffline = errors.New("connection refused")

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeQuestions struct {
	mu        sync.Mutex
	questions []model.Question
	offline   bool
	searches  int
	// block, when set, is received from before each search returns.
	block chan struct{}
}

func (f *fakeQuestions) GetQuestion(_ context.Context, id int64) (model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return model.Question{}, errOffline
	}
	for _, q := range f.questions {
		if q.ID == id {
			return q, nil
		}
	}
	return model.Question{}, errors.New("not found")
}

func (f *fakeQuestions) SearchQuestions(_ context.Context, filters model.FilterSpec, page, pageSize int) (model.QuestionPage, error) {
	f.mu.Lock()
	f.searches++
	block := f.block
	offline := f.offline
	var matched []model.Question
	for _, q := range f.questions {
		if len(filters.Years) > 0 && !slices.Contains(filters.Years, q.Year) {
			continue
		}
		if len(filters.Types) > 0 && !slices.Contains(filters.Types, q.Type) {
			continue
		}
		matched = append(matched, q)
	}
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if offline {
		return model.QuestionPage{}, errOffline
	}
	start := min((page-1)*pageSize, len(matched))
	end := min(start+pageSize, len(matched))
	return model.QuestionPage{Questions: matched[start:end], Total: len(matched), Page: page, PageSize: pageSize}, nil
}

func (f *fakeQuestions) CountQuestions(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return 0, errOffline
	}
	return len(f.questions), nil
}

func makeQuestions(n int, year string) []model.Question {
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{ID: int64(i + 1), Code: "Q" + year, Year: year, Type: "single", Content: "question", Answer: "A"}
	}
	return qs
}

type fakeJudge struct {
	mu       sync.Mutex
	answers  map[int64]string
	offline  bool
	requests []model.JudgeRequest
}

func (f *fakeJudge) Submit(_ context.Context, req model.JudgeRequest) (model.JudgeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.offline {
		return model.JudgeResult{}, errOffline
	}
	correct := f.answers[req.QuestionID]
	return model.JudgeResult{
		IsCorrect:     AnswersMatch(req.SubmittedAnswer, correct),
		CorrectAnswer: correct,
		Explanation:   "because",
	}, nil
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]model.AnswerSession
	offline  bool
	migrated [][]model.AnswerSession
	legacy   []model.AnswerRecord
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[string]model.AnswerSession)}
}

func (f *fakeSessions) ListSessions(context.Context) ([]model.AnswerSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, errOffline
	}
	var out []model.AnswerSession
	for _, s := range f.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSessions) UpsertSession(_ context.Context, s model.AnswerSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return errOffline
	}
	f.sessions[s.SessionID] = s
	return nil
}

func (f *fakeSessions) MigrateSessions(_ context.Context, sessions []model.AnswerSession, legacy []model.AnswerRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return errOffline
	}
	f.migrated = append(f.migrated, sessions)
	f.legacy = append(f.legacy, legacy...)
	for _, s := range sessions {
		if _, ok := f.sessions[s.SessionID]; !ok {
			f.sessions[s.SessionID] = s
		}
	}
	return nil
}

type fakeMirror struct {
	mu        sync.Mutex
	favorites map[int64]bool
	wrong     []model.WrongQuestionEntry
	removed   []int64
	offline   bool
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{favorites: make(map[int64]bool)}
}

func (f *fakeMirror) ToggleFavorite(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return false, errOffline
	}
	f.favorites[id] = !f.favorites[id]
	return f.favorites[id], nil
}

func (f *fakeMirror) ListFavorites(context.Context) ([]model.FavoriteEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, errOffline
	}
	var out []model.FavoriteEntry
	for id, on := range f.favorites {
		if on {
			out = append(out, model.FavoriteEntry{ID: id})
		}
	}
	slices.SortFunc(out, func(a, b model.FavoriteEntry) int { return int(a.ID - b.ID) })
	return out, nil
}

func (f *fakeMirror) ListWrong(context.Context) ([]model.WrongQuestionEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, errOffline
	}
	return slices.Clone(f.wrong), nil
}

func (f *fakeMirror) RemoveWrong(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return errOffline
	}
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeMirror) setOffline(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = v
}

type testEnv struct {
	engine    *Engine
	store     *kv.Memory
	clock     *clock
	questions *fakeQuestions
	judge     *fakeJudge
	sessions  *fakeSessions
	mirror    *fakeMirror
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:     kv.NewMemory(),
		clock:     newClock(),
		questions: &fakeQuestions{questions: makeQuestions(30, "2022")},
		judge:     &fakeJudge{answers: map[int64]string{1: "A", 2: "AC", 3: "B"}},
		sessions:  newFakeSessions(),
		mirror:    newFakeMirror(),
	}
	e, err := New(Config{
		Store:     env.store,
		Questions: env.questions,
		Judge:     env.judge,
		Sessions:  env.sessions,
		Mirror:    env.mirror,
		Now:       env.clock.Now,
		Debounce:  20 * time.Millisecond,
	})
	require.NoError(t, err)
	env.engine = e
	return env
}
