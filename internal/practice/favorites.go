package practice

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/pavelanni/studyhub/internal/events"
	"github.com/pavelanni/studyhub/internal/model"
)

// maxCachedDetails bounds the question detail cache.
const maxCachedDetails = 500

// Favorites caches the favorite id set and entry details. When the mirror is
// reachable its flag is authoritative.
type Favorites struct {
	slots  *slots
	mirror Mirror
	bus    *events.Bus
	now    func() time.Time
	log    *slog.Logger
}

// IDs returns the favorite question ids.
func (f *Favorites) IDs(ctx context.Context) ([]int64, error) {
	ids, err := load[[]int64](ctx, f.slots, keyFavoriteIDs)
	if err != nil {
		return nil, fmt.Errorf("load favorite ids: %w", err)
	}
	return ids, nil
}

// IsFavorite reports whether id is in the local favorite set.
func (f *Favorites) IsFavorite(ctx context.Context, id int64) (bool, error) {
	ids, err := f.IDs(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, id), nil
}

// Entries returns favorites in the order they were added. Ids without a
// cached detail get a bare entry.
func (f *Favorites) Entries(ctx context.Context) ([]model.FavoriteEntry, error) {
	ids, err := f.IDs(ctx)
	if err != nil {
		return nil, err
	}
	details, err := load[[]model.FavoriteEntry](ctx, f.slots, keyFavoriteQuestions)
	if err != nil {
		return nil, fmt.Errorf("load favorite details: %w", err)
	}
	byID := make(map[int64]model.FavoriteEntry, len(details))
	for _, d := range details {
		byID[d.ID] = d
	}
	out := make([]model.FavoriteEntry, 0, len(ids))
	for _, id := range ids {
		e, ok := byID[id]
		if !ok {
			e = model.FavoriteEntry{ID: id}
		}
		out = append(out, e)
	}
	return out, nil
}

// Toggle flips the favorite flag of q and returns the new state. The remote
// toggle is tried first; when it fails the local set is flipped instead.
func (f *Favorites) Toggle(ctx context.Context, q model.Question) (bool, error) {
	var on bool
	remoteOK := false
	if f.mirror != nil {
		var err error
		on, err = f.mirror.ToggleFavorite(ctx, q.ID)
		if err != nil {
			f.log.Warn("remote favorite toggle failed, toggling locally", "question_id", q.ID, "error", err)
		} else {
			remoteOK = true
		}
	}
	if !remoteOK {
		cur, err := f.IsFavorite(ctx, q.ID)
		if err != nil {
			return false, err
		}
		on = !cur
	}
	if err := f.set(ctx, q, on); err != nil {
		return false, err
	}
	f.bus.Publish(events.FavoritesChanged, q.ID)
	return on, nil
}

func (f *Favorites) set(ctx context.Context, q model.Question, on bool) error {
	if _, err := update(ctx, f.slots, keyFavoriteIDs, func(ids *[]int64) (bool, error) {
		has := slices.Contains(*ids, q.ID)
		switch {
		case on && !has:
			*ids = append(*ids, q.ID)
		case !on && has:
			*ids = slices.DeleteFunc(*ids, func(id int64) bool { return id == q.ID })
		default:
			return false, nil
		}
		return true, nil
	}); err != nil {
		return fmt.Errorf("save favorite ids: %w", err)
	}
	_, err := update(ctx, f.slots, keyFavoriteQuestions, func(entries *[]model.FavoriteEntry) (bool, error) {
		*entries = slices.DeleteFunc(*entries, func(e model.FavoriteEntry) bool { return e.ID == q.ID })
		if on {
			*entries = append(*entries, model.FavoriteEntry{ID: q.ID, Code: q.Code, Content: q.Content, AddedAt: f.now()})
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("save favorite details: %w", err)
	}
	return nil
}

// Sync replaces the local favorite cache with the remote set.
func (f *Favorites) Sync(ctx context.Context) error {
	if f.mirror == nil {
		return nil
	}
	remote, err := f.mirror.ListFavorites(ctx)
	if err != nil {
		return fmt.Errorf("list remote favorites: %w", err)
	}
	ids := make([]int64, 0, len(remote))
	for _, e := range remote {
		ids = append(ids, e.ID)
	}
	if _, err := update(ctx, f.slots, keyFavoriteIDs, func(v *[]int64) (bool, error) {
		*v = ids
		return true, nil
	}); err != nil {
		return fmt.Errorf("save favorite ids: %w", err)
	}
	if _, err := update(ctx, f.slots, keyFavoriteQuestions, func(v *[]model.FavoriteEntry) (bool, error) {
		*v = remote
		return true, nil
	}); err != nil {
		return fmt.Errorf("save favorite details: %w", err)
	}
	f.bus.Publish(events.FavoritesChanged, len(ids))
	return nil
}

// DetailCache keeps the most recently fetched full questions for offline
// judging and display.
type DetailCache struct {
	slots *slots
}

// Get returns the cached question id.
func (c *DetailCache) Get(ctx context.Context, id int64) (model.Question, bool, error) {
	qs, err := load[[]model.Question](ctx, c.slots, keyQuestionDetails)
	if err != nil {
		return model.Question{}, false, fmt.Errorf("load question details: %w", err)
	}
	for _, q := range qs {
		if q.ID == id {
			return q, true, nil
		}
	}
	return model.Question{}, false, nil
}

// Put caches q, replacing an older copy. A cached correct answer is kept
// when q arrives without one.
func (c *DetailCache) Put(ctx context.Context, q model.Question) error {
	_, err := update(ctx, c.slots, keyQuestionDetails, func(qs *[]model.Question) (bool, error) {
		for i, old := range *qs {
			if old.ID != q.ID {
				continue
			}
			if q.Answer == "" {
				q.Answer = old.Answer
			}
			if q.Explanation == "" {
				q.Explanation = old.Explanation
			}
			*qs = slices.Delete(*qs, i, i+1)
			break
		}
		*qs = append(*qs, q)
		if len(*qs) > maxCachedDetails {
			*qs = (*qs)[len(*qs)-maxCachedDetails:]
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("save question detail: %w", err)
	}
	return nil
}
