// Package practice is the practice-session answer-state engine: per-mode
// answer histories, practice sessions reconciled with a remote store, the
// navigation index over filtered question lists, answer submission with a
// local fallback judge, and the deferred wrong-question lifecycle.
//
// All state lives in a kv.Store. Remote collaborators are optional; the
// engine degrades to local data when they are nil or unreachable.
package practice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/studyhub/internal/events"
	"github.com/pavelanni/studyhub/internal/kv"
	"github.com/pavelanni/studyhub/internal/model"
)

// Config wires an Engine. Only Store is required.
type Config struct {
	Store     kv.Store
	Bus       *events.Bus
	Questions QuestionService
	Judge     Judge
	Sessions  SessionStore
	Mirror    Mirror
	Logger    *slog.Logger
	Now       func() time.Time

	// DefaultTotal sizes the fallback navigation list when no count is known.
	DefaultTotal int
	// PartialThreshold is the result size above which filtered lists
	// without a search are cached as a total only.
	PartialThreshold int
	// ListTTL is the maximum age of a cached navigation list.
	ListTTL  time.Duration
	PageSize int
	Debounce time.Duration
}

// Engine ties the practice components together around one key-value store.
// It is safe for concurrent use.
type Engine struct {
	history   *HistoryStore
	sessions  *SessionManager
	nav       *Navigator
	wrong     *WrongLifecycle
	favorites *Favorites
	details   *DetailCache
	submitter *submitter
	questions QuestionService
	bus       *events.Bus
	debounce  *Debouncer
	log       *slog.Logger
}

// New builds an engine from cfg, filling defaults.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("practice: store is required")
	}
	if cfg.Bus == nil {
		cfg.Bus = events.NewBus()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.DefaultTotal <= 0 {
		cfg.DefaultTotal = 25
	}
	if cfg.PartialThreshold <= 0 {
		cfg.PartialThreshold = 200
	}
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = time.Hour
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	s := newSlots(cfg.Store)
	log := cfg.Logger
	e := &Engine{
		questions: cfg.Questions,
		bus:       cfg.Bus,
		debounce:  NewDebouncer(cfg.Debounce),
		log:       log,
	}
	e.history = &HistoryStore{slots: s, now: cfg.Now, log: log.With("component", "history")}
	e.sessions = &SessionManager{
		slots:   s,
		remote:  cfg.Sessions,
		history: e.history,
		bus:     cfg.Bus,
		now:     cfg.Now,
		log:     log.With("component", "sessions"),
		newID:   newSessionID,
	}
	e.wrong = &WrongLifecycle{slots: s, mirror: cfg.Mirror, bus: cfg.Bus, now: cfg.Now, log: log.With("component", "wrong")}
	e.favorites = &Favorites{slots: s, mirror: cfg.Mirror, bus: cfg.Bus, now: cfg.Now, log: log.With("component", "favorites")}
	e.details = &DetailCache{slots: s}
	e.nav = &Navigator{
		slots:            s,
		questions:        cfg.Questions,
		wrong:            e.wrong,
		favorites:        e.favorites,
		bus:              cfg.Bus,
		now:              cfg.Now,
		log:              log.With("component", "navigation"),
		listTTL:          cfg.ListTTL,
		partialThreshold: cfg.PartialThreshold,
		defaultTotal:     cfg.DefaultTotal,
		pageSize:         cfg.PageSize,
	}
	fallback := NewFallbackResolver(log.With("component", "fallback"),
		wrongTier{e.wrong},
		detailTier{e.details},
		historyTier{e.history},
	)
	e.submitter = &submitter{
		history:   e.history,
		sessions:  e.sessions,
		wrong:     e.wrong,
		details:   e.details,
		judge:     cfg.Judge,
		fallback:  fallback,
		questions: cfg.Questions,
		bus:       cfg.Bus,
		now:       cfg.Now,
		log:       log.With("component", "submit"),
	}
	return e, nil
}

// History returns the per-mode answer history store.
func (e *Engine) History() *HistoryStore { return e.history }

// Sessions returns the session manager.
func (e *Engine) Sessions() *SessionManager { return e.sessions }

// Navigator returns the navigation index builder.
func (e *Engine) Navigator() *Navigator { return e.nav }

// Wrong returns the wrong-question lifecycle.
func (e *Engine) Wrong() *WrongLifecycle { return e.wrong }

// Favorites returns the favorite set.
func (e *Engine) Favorites() *Favorites { return e.favorites }

// Details returns the question detail cache.
func (e *Engine) Details() *DetailCache { return e.details }

// Bus returns the event bus the engine publishes on.
func (e *Engine) Bus() *events.Bus { return e.bus }

// Start begins a practice session over filters. Wrong and favorites sources
// size the session from their local collections.
func (e *Engine) Start(ctx context.Context, filters model.FilterSpec, source model.Source) (string, error) {
	total, err := e.sourceTotal(ctx, filters, source)
	if err != nil {
		e.log.Warn("question total unknown", "source", source, "error", err)
	}
	return e.sessions.Create(ctx, filters, total, source)
}

func (e *Engine) sourceTotal(ctx context.Context, filters model.FilterSpec, source model.Source) (int, error) {
	switch source {
	case model.SourceWrong:
		entries, err := e.wrong.Entries(ctx)
		return len(entries), err
	case model.SourceFavorites:
		ids, err := e.favorites.IDs(ctx)
		return len(ids), err
	}
	if e.questions == nil {
		return 0, nil
	}
	if filters.IsEmpty() {
		return e.questions.CountQuestions(ctx)
	}
	page, err := e.questions.SearchQuestions(ctx, filters, 1, 1)
	return page.Total, err
}

// Navigate builds the navigation list for req. The session's filters and
// source are used when req leaves them unset.
func (e *Engine) Navigate(ctx context.Context, req NavRequest) (Navigation, error) {
	if sess, ok, err := e.sessions.Current(ctx); err == nil && ok && sess.Active() {
		if req.Source == "" {
			req.Source = sess.Source
			if req.Filters.IsEmpty() {
				req.Filters = sess.Filters
			}
		}
		if req.TotalHint == 0 {
			req.TotalHint = sess.TotalQuestions
		}
	}
	return e.nav.Build(ctx, req)
}

// Question fetches a question and caches its detail. When the question
// service is unreachable the cached detail or wrong-set snapshot is used.
func (e *Engine) Question(ctx context.Context, id int64) (model.Question, error) {
	var remoteErr error
	if e.questions != nil {
		q, err := e.questions.GetQuestion(ctx, id)
		if err == nil {
			if err := e.details.Put(ctx, q); err != nil {
				e.log.Warn("question detail not cached", "question_id", id, "error", err)
			}
			return q, nil
		}
		remoteErr = err
		e.log.Warn("question service unavailable, using local copy", "question_id", id, "error", err)
	}
	if q, ok, err := e.details.Get(ctx, id); err == nil && ok {
		return q, nil
	}
	if w, ok, err := e.wrong.Entry(ctx, id); err == nil && ok {
		return model.Question{
			ID:          w.ID,
			Code:        w.Code,
			Year:        w.Year,
			Type:        w.Type,
			Content:     w.Content,
			Options:     w.Options,
			Answer:      w.CorrectAnswer,
			Explanation: w.Explanation,
		}, nil
	}
	if remoteErr != nil {
		return model.Question{}, fmt.Errorf("get question %d: %w", id, remoteErr)
	}
	return model.Question{}, fmt.Errorf("get question %d: not available offline", id)
}

// Submit judges and records an answer in mode. It returns ErrUnresolvable,
// with nothing written, when no judge can decide.
func (e *Engine) Submit(ctx context.Context, questionID int64, answer []string, mode model.Mode) (SubmissionResult, error) {
	return e.submitter.submit(ctx, questionID, answer, mode)
}

// ToggleFavorite flips the favorite flag of a question.
func (e *Engine) ToggleFavorite(ctx context.Context, id int64) (bool, error) {
	q, err := e.Question(ctx, id)
	if err != nil {
		q = model.Question{ID: id}
	}
	return e.favorites.Toggle(ctx, q)
}

// Refresh rebuilds the navigation cache for filters.
func (e *Engine) Refresh(ctx context.Context, filters model.FilterSpec) (model.FilteredQuestionList, error) {
	return e.nav.Refresh(ctx, filters)
}

// QueueRefresh debounces Refresh for keyword typing. done, if not nil, runs
// with the result of the refresh that actually happened.
func (e *Engine) QueueRefresh(filters model.FilterSpec, done func(model.FilteredQuestionList, error)) {
	e.debounce.Trigger(func() {
		list, err := e.nav.Refresh(context.Background(), filters)
		if err != nil && !errors.Is(err, ErrStaleResponse) {
			e.log.Warn("navigation refresh failed", "error", err)
		}
		if done != nil {
			done(list, err)
		}
	})
}

// EndSession ends the current session and flushes pending wrong-question
// removals. It is safe to call repeatedly.
func (e *Engine) EndSession(ctx context.Context) error {
	return errors.Join(e.sessions.End(ctx), e.wrong.OnSessionEnd(ctx))
}

// SessionHistory runs the one-shot migration and returns the reconciled
// session list.
func (e *Engine) SessionHistory(ctx context.Context) []model.AnswerSession {
	if err := e.sessions.Migrate(ctx); err != nil {
		e.log.Warn("session migration failed, will retry", "error", err)
	}
	return e.sessions.Reconcile(ctx)
}

// Sync pulls the remote wrong and favorite sets into the local caches.
func (e *Engine) Sync(ctx context.Context) error {
	return errors.Join(e.wrong.Sync(ctx), e.favorites.Sync(ctx))
}

// Stats returns the answered/correct summary for mode.
func (e *Engine) Stats(ctx context.Context, mode model.Mode) (Stats, error) {
	return e.history.Stats(ctx, mode)
}

// Close stops pending debounced work and ends the session.
func (e *Engine) Close(ctx context.Context) error {
	e.debounce.Stop()
	return e.EndSession(ctx)
}
