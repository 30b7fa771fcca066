package practice

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/studyhub/internal/kv"
	"github.com/pavelanni/studyhub/internal/model"
)

// HistoryStore persists one ModeHistory per practice mode. It performs no
// network I/O.
type HistoryStore struct {
	slots *slots
	now   func() time.Time
	log   *slog.Logger
}

// Load returns the history of mode. Absent, expired and undecodable
// histories all yield a fresh empty history; stale data is discarded on
// read, not deleted.
func (h *HistoryStore) Load(ctx context.Context, mode model.Mode) (model.ModeHistory, error) {
	if !mode.Valid() {
		return model.ModeHistory{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	return h.read(ctx, mode)
}

func (h *HistoryStore) read(ctx context.Context, mode model.Mode) (model.ModeHistory, error) {
	raw, ok, err := h.slots.kv.Get(ctx, Slot(mode))
	if err != nil {
		return model.ModeHistory{}, fmt.Errorf("load %s history: %w", mode, err)
	}
	if !ok {
		return model.NewModeHistory(), nil
	}
	var hist model.ModeHistory
	if err := json.Unmarshal(raw, &hist); err != nil {
		h.log.Warn("discarding undecodable history", "mode", mode, "error", err)
		return model.NewModeHistory(), nil
	}
	if hist.Expired(h.now()) {
		h.log.Debug("discarding expired history", "mode", mode, "timestamp", hist.Timestamp)
		return model.NewModeHistory(), nil
	}
	if err := hist.Validate(); err != nil {
		h.log.Warn("repairing inconsistent history", "mode", mode, "error", err)
		hist.Repair()
	}
	if hist.Results == nil {
		hist.Repair()
	}
	return hist, nil
}

// Save replaces the history of mode, stamping its timestamp with now.
func (h *HistoryStore) Save(ctx context.Context, mode model.Mode, hist model.ModeHistory) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	unlock := h.slots.lock(Slot(mode))
	defer unlock()
	return h.write(ctx, mode, &hist)
}

func (h *HistoryStore) write(ctx context.Context, mode model.Mode, hist *model.ModeHistory) error {
	if err := hist.Validate(); err != nil {
		return fmt.Errorf("save %s history: %w", mode, err)
	}
	hist.Timestamp = h.now()
	if err := kv.SetJSON(ctx, h.slots.kv, Slot(mode), hist); err != nil {
		return fmt.Errorf("save %s history: %w", mode, err)
	}
	return nil
}

// Clear removes one question from the history of mode, or the whole history
// when questionID is nil.
func (h *HistoryStore) Clear(ctx context.Context, mode model.Mode, questionID *int64) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if questionID == nil {
		if err := h.slots.delete(ctx, Slot(mode)); err != nil {
			return fmt.Errorf("clear %s history: %w", mode, err)
		}
		return nil
	}
	_, err := h.modify(ctx, mode, func(hist *model.ModeHistory) {
		hist.Remove(*questionID)
	})
	return err
}

// Record upserts rec into the history of mode and returns the updated
// history. Recording the same question again replaces the earlier record.
func (h *HistoryStore) Record(ctx context.Context, mode model.Mode, rec model.AnswerRecord) (model.ModeHistory, error) {
	if !mode.Valid() {
		return model.ModeHistory{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	return h.modify(ctx, mode, func(hist *model.ModeHistory) {
		hist.Upsert(rec)
	})
}

func (h *HistoryStore) modify(ctx context.Context, mode model.Mode, fn func(*model.ModeHistory)) (model.ModeHistory, error) {
	unlock := h.slots.lock(Slot(mode))
	defer unlock()

	hist, err := h.read(ctx, mode)
	if err != nil {
		return hist, err
	}
	fn(&hist)
	if err := h.write(ctx, mode, &hist); err != nil {
		return hist, err
	}
	return hist, nil
}

// Stats summarizes the history of one mode.
type Stats struct {
	Mode     model.Mode `json:"mode"`
	Answered int        `json:"answered"`
	Correct  int        `json:"correct"`
	Accuracy float64    `json:"accuracy"`
}

// Stats returns answered/correct counts for mode.
func (h *HistoryStore) Stats(ctx context.Context, mode model.Mode) (Stats, error) {
	hist, err := h.Load(ctx, mode)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Mode:     mode,
		Answered: hist.AnsweredCount(),
		Correct:  hist.CorrectCount(),
		Accuracy: model.Accuracy(hist.CorrectCount(), hist.AnsweredCount()),
	}, nil
}
