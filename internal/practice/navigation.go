package practice

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pavelanni/studyhub/internal/events"
	"github.com/pavelanni/studyhub/internal/model"
)

// Navigation strategies, in priority order.
const (
	StrategyWrong     = "wrong"
	StrategyFavorites = "favorites"
	StrategyCached    = "cached"
	StrategyPartial   = "partial"
	StrategyFallback  = "fallback"
)

// refreshPageSize is the page size used to materialize a filtered list.
const refreshPageSize = 100

// NavRequest describes the position a learner is navigating from.
type NavRequest struct {
	QuestionID int64
	// Index is an explicit position hint, trusted only when the entry there
	// has QuestionID.
	Index     *int
	Source    model.Source
	Filters   model.FilterSpec
	TotalHint int
	PageSize  int
}

// Navigation is an ordered, indexable question list with the resolved
// current position.
type Navigation struct {
	Questions []model.QuestionRef `json:"questions"`
	Index     int                 `json:"index"`
	Total     int                 `json:"total"`
	Page      int                 `json:"page"`
	PageSize  int                 `json:"page_size"`
	Partial   bool                `json:"partial"`
	Loading   bool                `json:"loading"`
	Strategy  string              `json:"strategy"`
}

// PageCount returns the number of jump-panel pages.
func (n Navigation) PageCount() int {
	if n.PageSize <= 0 || len(n.Questions) == 0 {
		return 0
	}
	return (len(n.Questions) + n.PageSize - 1) / n.PageSize
}

// PageItems returns the entries on the 1-based page.
func (n Navigation) PageItems(page int) []model.QuestionRef {
	if page < 1 || page > n.PageCount() {
		return nil
	}
	start := (page - 1) * n.PageSize
	end := min(start+n.PageSize, len(n.Questions))
	return n.Questions[start:end]
}

// Current returns the entry at Index.
func (n Navigation) Current() (model.QuestionRef, bool) {
	return n.at(n.Index)
}

// Next returns the entry after Index.
func (n Navigation) Next() (model.QuestionRef, bool) {
	return n.at(n.Index + 1)
}

// Prev returns the entry before Index.
func (n Navigation) Prev() (model.QuestionRef, bool) {
	return n.at(n.Index - 1)
}

func (n Navigation) at(i int) (model.QuestionRef, bool) {
	if n.Loading || i < 0 || i >= len(n.Questions) {
		return model.QuestionRef{}, false
	}
	return n.Questions[i], true
}

// Navigator builds navigation lists and keeps the filtered list cache.
type Navigator struct {
	slots     *slots
	questions QuestionService
	wrong     *WrongLifecycle
	favorites *Favorites
	bus       *events.Bus
	now       func() time.Time
	log       *slog.Logger

	listTTL          time.Duration
	partialThreshold int
	defaultTotal     int
	pageSize         int

	seq atomic.Uint64
}

// Build resolves req into a navigation list. The first applicable strategy
// wins: a wrong/favorites source override, the cached full list, cached
// partial info, and finally a dense fallback list.
func (n *Navigator) Build(ctx context.Context, req NavRequest) (Navigation, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = n.pageSize
	}
	nav := Navigation{PageSize: pageSize}

	switch req.Source {
	case model.SourceWrong:
		entries, err := n.wrong.Entries(ctx)
		if err != nil {
			return nav, err
		}
		for _, e := range entries {
			nav.Questions = append(nav.Questions, model.QuestionRef{ID: e.ID, Code: e.Code})
		}
		nav.Strategy = StrategyWrong
		return n.finish(nav, req, false), nil
	case model.SourceFavorites:
		entries, err := n.favorites.Entries(ctx)
		if err != nil {
			return nav, err
		}
		for _, e := range entries {
			nav.Questions = append(nav.Questions, model.QuestionRef{ID: e.ID, Code: e.Code})
		}
		nav.Strategy = StrategyFavorites
		return n.finish(nav, req, false), nil
	}

	cached, err := n.cachedList(ctx, req.Filters)
	if err != nil {
		n.log.Warn("ignoring unreadable navigation cache", "error", err)
		cached = nil
	}
	switch {
	case cached != nil && !cached.Partial:
		nav.Questions = append([]model.QuestionRef(nil), cached.Questions...)
		nav.Strategy = StrategyCached
		return n.finish(nav, req, true), nil
	case cached != nil && cached.Partial && cached.ActualTotal > 0:
		nav.Questions = virtualList(cached.ActualTotal, cached.Questions)
		nav.Partial = true
		nav.Strategy = StrategyPartial
		return n.finishPartial(nav, req), nil
	}

	total := req.TotalHint
	if total <= 0 && n.questions != nil {
		count, err := n.questions.CountQuestions(ctx)
		if err != nil {
			n.log.Debug("question count unavailable, using default", "error", err)
		} else {
			total = count
		}
	}
	if total <= 0 {
		total = n.defaultTotal
	}
	nav.Questions = virtualList(total, nil)
	nav.Strategy = StrategyFallback
	return n.finish(nav, req, true), nil
}

// finish resolves the index. With appendMissing, an id not in the list is
// appended so navigation never loses the current question.
func (n *Navigator) finish(nav Navigation, req NavRequest, appendMissing bool) Navigation {
	idx := resolveIndex(nav.Questions, req.QuestionID, req.Index)
	if idx < 0 && req.QuestionID > 0 && appendMissing {
		n.log.Debug("current question not in list, appending", "question_id", req.QuestionID, "strategy", nav.Strategy)
		nav.Questions = append(nav.Questions, model.QuestionRef{ID: req.QuestionID})
		idx = len(nav.Questions) - 1
	}
	if idx < 0 {
		idx = 0
	}
	nav.Index = idx
	return paginate(nav)
}

// finishPartial resolves the index by numeric id position, clamped.
func (n *Navigator) finishPartial(nav Navigation, req NavRequest) Navigation {
	idx := resolveIndex(nav.Questions, req.QuestionID, req.Index)
	if idx < 0 {
		idx = min(max(int(req.QuestionID)-1, 0), len(nav.Questions)-1)
	}
	nav.Index = idx
	return paginate(nav)
}

func paginate(nav Navigation) Navigation {
	nav.Total = len(nav.Questions)
	if nav.Total == 0 {
		nav.Loading = true
		nav.Index = 0
		nav.Page = 0
		return nav
	}
	nav.Page = (nav.Index + 1 + nav.PageSize - 1) / nav.PageSize
	return nav
}

// resolveIndex trusts hint only when it is in range and points at id;
// otherwise it searches linearly. It returns -1 when id is absent.
func resolveIndex(list []model.QuestionRef, id int64, hint *int) int {
	if hint != nil && *hint >= 0 && *hint < len(list) && list[*hint].ID == id {
		return *hint
	}
	for i, q := range list {
		if q.ID == id {
			return i
		}
	}
	return -1
}

// virtualList returns placeholder entries 1..total, overlaid with any
// materialized prefix.
func virtualList(total int, prefix []model.QuestionRef) []model.QuestionRef {
	list := make([]model.QuestionRef, total)
	for i := range list {
		if i < len(prefix) {
			list[i] = prefix[i]
			continue
		}
		list[i] = model.QuestionRef{ID: int64(i + 1)}
	}
	return list
}

// cachedList returns the cached list when it is fresh and matches filters.
func (n *Navigator) cachedList(ctx context.Context, filters model.FilterSpec) (*model.FilteredQuestionList, error) {
	list, err := load[*model.FilteredQuestionList](ctx, n.slots, keyFilteredList)
	if err != nil || list == nil {
		return nil, err
	}
	if n.now().Sub(list.Timestamp) >= n.listTTL {
		n.log.Debug("navigation cache is stale", "timestamp", list.Timestamp)
		return nil, nil
	}
	if !list.Filters.Equal(filters) {
		return nil, nil
	}
	return list, nil
}

// Refresh rebuilds the cached list for filters from the question service.
// Results larger than the partial threshold without an explicit search are
// cached as a total only. If a newer Refresh starts before this one
// finishes, this one returns ErrStaleResponse and leaves the cache alone.
func (n *Navigator) Refresh(ctx context.Context, filters model.FilterSpec) (model.FilteredQuestionList, error) {
	tag := n.seq.Add(1)
	filters = filters.Normalize()
	if n.questions == nil {
		return model.FilteredQuestionList{}, fmt.Errorf("refresh navigation: no question service")
	}

	first, err := n.questions.SearchQuestions(ctx, filters, 1, refreshPageSize)
	if err != nil {
		return model.FilteredQuestionList{}, fmt.Errorf("search questions: %w", err)
	}
	list := model.FilteredQuestionList{Filters: filters, ActualTotal: first.Total}
	if first.Total > n.partialThreshold && !filters.HasSearch() {
		list.Partial = true
	} else {
		list.Questions = refs(first.Questions)
		for page := 2; len(list.Questions) < first.Total; page++ {
			if n.seq.Load() != tag {
				return model.FilteredQuestionList{}, ErrStaleResponse
			}
			next, err := n.questions.SearchQuestions(ctx, filters, page, refreshPageSize)
			if err != nil {
				return model.FilteredQuestionList{}, fmt.Errorf("search questions page %d: %w", page, err)
			}
			if len(next.Questions) == 0 {
				break
			}
			list.Questions = append(list.Questions, refs(next.Questions)...)
		}
	}

	var stale bool
	_, err = update(ctx, n.slots, keyFilteredList, func(cur **model.FilteredQuestionList) (bool, error) {
		if n.seq.Load() != tag {
			stale = true
			return false, nil
		}
		list.Timestamp = n.now()
		*cur = &list
		return true, nil
	})
	if err != nil {
		return model.FilteredQuestionList{}, fmt.Errorf("save navigation cache: %w", err)
	}
	if stale {
		n.log.Debug("discarding superseded list response", "tag", tag)
		return model.FilteredQuestionList{}, ErrStaleResponse
	}
	n.log.Debug("navigation list refreshed", "total", list.ActualTotal, "partial", list.Partial)
	n.bus.Publish(events.NavigationRefreshed, list)
	return list, nil
}

// Invalidate drops the cached list.
func (n *Navigator) Invalidate(ctx context.Context) error {
	n.seq.Add(1)
	return n.slots.delete(ctx, keyFilteredList)
}

func refs(qs []model.Question) []model.QuestionRef {
	out := make([]model.QuestionRef, 0, len(qs))
	for _, q := range qs {
		out = append(out, model.QuestionRef{ID: q.ID, Code: q.Code})
	}
	return out
}
