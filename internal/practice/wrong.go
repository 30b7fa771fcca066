package practice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/pavelanni/studyhub/internal/events"
	"github.com/pavelanni/studyhub/internal/model"
)

// WrongLifecycle maintains the local wrong-question collection. Removal is
// two-phase: questions answered correctly in wrong mode are only marked
// pending, and leave the collection when the session ends, so the list a
// learner is working through does not shift mid-session.
type WrongLifecycle struct {
	slots  *slots
	mirror Mirror
	bus    *events.Bus
	now    func() time.Time
	log    *slog.Logger
}

// Entries returns the wrong-question collection in insertion order.
func (w *WrongLifecycle) Entries(ctx context.Context) ([]model.WrongQuestionEntry, error) {
	entries, err := load[[]model.WrongQuestionEntry](ctx, w.slots, keyWrongQuestions)
	if err != nil {
		return nil, fmt.Errorf("load wrong questions: %w", err)
	}
	return entries, nil
}

// Entry returns the cached entry for id.
func (w *WrongLifecycle) Entry(ctx context.Context, id int64) (model.WrongQuestionEntry, bool, error) {
	entries, err := w.Entries(ctx)
	if err != nil {
		return model.WrongQuestionEntry{}, false, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, true, nil
		}
	}
	return model.WrongQuestionEntry{}, false, nil
}

// OnIncorrect adds the question to the collection unless it is already
// there. A pending or previously failed removal for it is withdrawn.
func (w *WrongLifecycle) OnIncorrect(ctx context.Context, q model.Question, rec model.AnswerRecord) error {
	for _, key := range []string{keyPendingRemovals, keyFailedRemovals} {
		if err := w.withdraw(ctx, key, rec.QuestionID); err != nil {
			return err
		}
	}

	var added bool
	_, err := update(ctx, w.slots, keyWrongQuestions, func(entries *[]model.WrongQuestionEntry) (bool, error) {
		for _, e := range *entries {
			if e.ID == rec.QuestionID {
				return false, nil
			}
		}
		*entries = append(*entries, wrongEntry(q, rec, w.now()))
		added = true
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("add wrong question: %w", err)
	}
	if added {
		w.log.Debug("question added to wrong set", "question_id", rec.QuestionID)
		w.bus.Publish(events.WrongChanged, rec.QuestionID)
	}
	return nil
}

func (w *WrongLifecycle) withdraw(ctx context.Context, key string, questionID int64) error {
	_, err := update(ctx, w.slots, key, func(ids *[]int64) (bool, error) {
		n := len(*ids)
		*ids = slices.DeleteFunc(*ids, func(id int64) bool { return id == questionID })
		return len(*ids) != n, nil
	})
	if err != nil {
		return fmt.Errorf("withdraw %s: %w", key, err)
	}
	return nil
}

// OnCorrectWhileInWrongMode marks id for removal at the end of the session.
// The collection itself is not touched.
func (w *WrongLifecycle) OnCorrectWhileInWrongMode(ctx context.Context, id int64) error {
	_, err := update(ctx, w.slots, keyPendingRemovals, func(ids *[]int64) (bool, error) {
		if slices.Contains(*ids, id) {
			return false, nil
		}
		*ids = append(*ids, id)
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("mark pending removal: %w", err)
	}
	return nil
}

// Pending returns the ids awaiting removal.
func (w *WrongLifecycle) Pending(ctx context.Context) ([]int64, error) {
	return load[[]int64](ctx, w.slots, keyPendingRemovals)
}

// OnSessionEnd removes every pending id remotely and then locally. Ids whose
// remote removal fails stay in the collection and are retried at the next
// session end. The pending set is cleared either way, which makes repeated
// calls harmless.
func (w *WrongLifecycle) OnSessionEnd(ctx context.Context) error {
	var pending []int64
	if _, err := update(ctx, w.slots, keyPendingRemovals, func(ids *[]int64) (bool, error) {
		pending = *ids
		*ids = nil
		return len(pending) > 0, nil
	}); err != nil {
		return fmt.Errorf("take pending removals: %w", err)
	}
	var retry []int64
	if _, err := update(ctx, w.slots, keyFailedRemovals, func(ids *[]int64) (bool, error) {
		retry = *ids
		*ids = nil
		return len(retry) > 0, nil
	}); err != nil {
		return fmt.Errorf("take failed removals: %w", err)
	}

	ids := append(slices.Clone(retry), pending...)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if len(ids) == 0 {
		return nil
	}

	var removed, failed []int64
	for _, id := range ids {
		if err := w.removeRemote(ctx, id); err != nil {
			w.log.Warn("remote wrong-question removal failed, will retry", "question_id", id, "error", err)
			failed = append(failed, id)
			continue
		}
		removed = append(removed, id)
	}

	var errs []error
	if len(removed) > 0 {
		_, err := update(ctx, w.slots, keyWrongQuestions, func(entries *[]model.WrongQuestionEntry) (bool, error) {
			n := len(*entries)
			*entries = slices.DeleteFunc(*entries, func(e model.WrongQuestionEntry) bool {
				return slices.Contains(removed, e.ID)
			})
			return len(*entries) != n, nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("remove wrong questions: %w", err))
		}
	}
	if len(failed) > 0 {
		_, err := update(ctx, w.slots, keyFailedRemovals, func(ids *[]int64) (bool, error) {
			*ids = append(*ids, failed...)
			return true, nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("keep failed removals: %w", err))
		}
	}
	w.log.Info("flushed pending wrong-question removals", "removed", len(removed), "failed", len(failed))
	if len(removed) > 0 {
		w.bus.Publish(events.WrongChanged, removed)
	}
	return errors.Join(errs...)
}

func (w *WrongLifecycle) removeRemote(ctx context.Context, id int64) error {
	if w.mirror == nil {
		return nil
	}
	return w.mirror.RemoveWrong(ctx, id)
}

// Sync adds remote wrong questions missing locally, skipping ids queued for
// removal. Local entries are kept.
func (w *WrongLifecycle) Sync(ctx context.Context) error {
	if w.mirror == nil {
		return nil
	}
	remote, err := w.mirror.ListWrong(ctx)
	if err != nil {
		return fmt.Errorf("list remote wrong questions: %w", err)
	}
	pending, err := w.Pending(ctx)
	if err != nil {
		return err
	}
	failed, err := load[[]int64](ctx, w.slots, keyFailedRemovals)
	if err != nil {
		return err
	}
	var added int
	_, err = update(ctx, w.slots, keyWrongQuestions, func(entries *[]model.WrongQuestionEntry) (bool, error) {
		have := make(map[int64]bool, len(*entries))
		for _, e := range *entries {
			have[e.ID] = true
		}
		for _, e := range remote {
			if have[e.ID] || slices.Contains(pending, e.ID) || slices.Contains(failed, e.ID) {
				continue
			}
			*entries = append(*entries, e)
			have[e.ID] = true
			added++
		}
		return added > 0, nil
	})
	if err != nil {
		return fmt.Errorf("merge wrong questions: %w", err)
	}
	if added > 0 {
		w.bus.Publish(events.WrongChanged, added)
	}
	return nil
}

func wrongEntry(q model.Question, rec model.AnswerRecord, now time.Time) model.WrongQuestionEntry {
	explanation := rec.Explanation
	if explanation == "" {
		explanation = q.Explanation
	}
	correct := rec.CorrectAnswer
	if correct == "" {
		correct = q.Answer
	}
	return model.WrongQuestionEntry{
		ID:              rec.QuestionID,
		Code:            q.Code,
		Year:            q.Year,
		Type:            q.Type,
		Content:         q.Content,
		Options:         q.Options,
		CorrectAnswer:   correct,
		Explanation:     explanation,
		SubmittedAnswer: rec.SubmittedAnswer,
		AddedAt:         now,
	}
}
