package practice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/studyhub/internal/model"
)

// FallbackSource is one tier of the local judge. It reports ok=false when it
// holds no correct answer for the question.
type FallbackSource interface {
	Name() string
	Lookup(ctx context.Context, questionID int64) (correct, explanation string, ok bool, err error)
}

// FallbackResolver judges answers from local data when the remote judge is
// unreachable. Tiers are consulted in order and the first one holding a
// correct answer wins.
type FallbackResolver struct {
	tiers []FallbackSource
	log   *slog.Logger
}

// NewFallbackResolver returns a resolver over the given tiers.
func NewFallbackResolver(log *slog.Logger, tiers ...FallbackSource) *FallbackResolver {
	if log == nil {
		log = slog.Default()
	}
	return &FallbackResolver{tiers: tiers, log: log}
}

// Check judges submitted for questionID. It returns ErrUnresolvable when no
// tier knows the correct answer; it never guesses.
func (r *FallbackResolver) Check(ctx context.Context, questionID int64, submitted string) (model.JudgeResult, string, error) {
	for _, tier := range r.tiers {
		correct, explanation, ok, err := tier.Lookup(ctx, questionID)
		if err != nil {
			r.log.Warn("fallback tier failed, skipping", "tier", tier.Name(), "question_id", questionID, "error", err)
			continue
		}
		if !ok || strings.TrimSpace(correct) == "" {
			r.log.Debug("fallback tier has no answer", "tier", tier.Name(), "question_id", questionID)
			continue
		}
		return model.JudgeResult{
			IsCorrect:     AnswersMatch(submitted, correct),
			CorrectAnswer: correct,
			Explanation:   explanation,
		}, tier.Name(), nil
	}
	return model.JudgeResult{}, "", fmt.Errorf("question %d: %w", questionID, ErrUnresolvable)
}

// wrongTier reads the cached wrong-question entries.
type wrongTier struct{ wrong *WrongLifecycle }

func (wrongTier) Name() string { return "wrong-cache" }

func (t wrongTier) Lookup(ctx context.Context, id int64) (string, string, bool, error) {
	e, ok, err := t.wrong.Entry(ctx, id)
	if err != nil || !ok {
		return "", "", false, err
	}
	return e.CorrectAnswer, e.Explanation, true, nil
}

// detailTier reads the cached full question details.
type detailTier struct{ details *DetailCache }

func (detailTier) Name() string { return "question-cache" }

func (t detailTier) Lookup(ctx context.Context, id int64) (string, string, bool, error) {
	q, ok, err := t.details.Get(ctx, id)
	if err != nil || !ok {
		return "", "", false, err
	}
	return q.Answer, q.Explanation, true, nil
}

// historyTier reads an earlier normal-mode answer record.
type historyTier struct{ history *HistoryStore }

func (historyTier) Name() string { return "normal-history" }

func (t historyTier) Lookup(ctx context.Context, id int64) (string, string, bool, error) {
	hist, err := t.history.Load(ctx, model.ModeNormal)
	if err != nil {
		return "", "", false, err
	}
	rec, ok := hist.Record(id)
	if !ok {
		return "", "", false, nil
	}
	return rec.CorrectAnswer, rec.Explanation, true, nil
}
