package practice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/studyhub/internal/events"
	"github.com/pavelanni/studyhub/internal/model"
)

// JudgedRemote marks a verdict from the remote judge. Local verdicts carry
// the name of the fallback tier that decided them.
const JudgedRemote = "remote"

// SubmissionResult is the outcome of one submitted answer.
type SubmissionResult struct {
	QuestionID      int64              `json:"question_id"`
	Mode            model.Mode         `json:"mode"`
	SubmittedAnswer string             `json:"submitted_answer"`
	IsCorrect       bool               `json:"is_correct"`
	CorrectAnswer   string             `json:"correct_answer"`
	Explanation     string             `json:"explanation"`
	JudgedBy        string             `json:"judged_by"`
	Record          model.AnswerRecord `json:"record"`
}

type submitter struct {
	history   *HistoryStore
	sessions  *SessionManager
	wrong     *WrongLifecycle
	details   *DetailCache
	judge     Judge
	fallback  *FallbackResolver
	questions QuestionService
	bus       *events.Bus
	now       func() time.Time
	log       *slog.Logger
}

// submit judges and records one answer. Nothing is written when the answer
// cannot be verified.
func (s *submitter) submit(ctx context.Context, questionID int64, selected []string, mode model.Mode) (SubmissionResult, error) {
	if !mode.Valid() {
		return SubmissionResult{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	answer := NormalizeAnswer(selected)
	if answer == "" {
		return SubmissionResult{}, ErrEmptyAnswer
	}

	verdict, judgedBy, err := s.judgeAnswer(ctx, questionID, answer)
	if err != nil {
		return SubmissionResult{}, err
	}

	rec := model.AnswerRecord{
		QuestionID:      questionID,
		SubmittedAnswer: answer,
		IsCorrect:       verdict.IsCorrect,
		CorrectAnswer:   verdict.CorrectAnswer,
		Explanation:     verdict.Explanation,
		AnsweredAt:      s.now(),
	}
	if _, err := s.history.Record(ctx, mode, rec); err != nil {
		return SubmissionResult{}, fmt.Errorf("record answer: %w", err)
	}
	if mode != model.ModeNormal {
		if _, err := s.history.Record(ctx, model.ModeNormal, rec); err != nil {
			return SubmissionResult{}, fmt.Errorf("mirror answer to normal history: %w", err)
		}
	}

	if err := s.sessions.Recompute(ctx, questionID); err != nil {
		s.log.Warn("session counters not updated", "question_id", questionID, "error", err)
	}

	switch {
	case !rec.IsCorrect:
		q := s.snapshot(ctx, questionID)
		if err := s.wrong.OnIncorrect(ctx, q, rec); err != nil {
			s.log.Warn("wrong set not updated", "question_id", questionID, "error", err)
		}
	case mode == model.ModeWrong:
		if err := s.wrong.OnCorrectWhileInWrongMode(ctx, questionID); err != nil {
			s.log.Warn("pending removal not recorded", "question_id", questionID, "error", err)
		}
	}

	res := SubmissionResult{
		QuestionID:      questionID,
		Mode:            mode,
		SubmittedAnswer: answer,
		IsCorrect:       rec.IsCorrect,
		CorrectAnswer:   rec.CorrectAnswer,
		Explanation:     rec.Explanation,
		JudgedBy:        judgedBy,
		Record:          rec,
	}
	s.bus.Publish(events.AnswerRecorded, res)
	return res, nil
}

func (s *submitter) judgeAnswer(ctx context.Context, questionID int64, answer string) (model.JudgeResult, string, error) {
	if s.judge != nil {
		verdict, err := s.judge.Submit(ctx, model.JudgeRequest{
			QuestionID:      questionID,
			SubmittedAnswer: answer,
			SessionID:       s.sessions.ActiveID(ctx),
		})
		if err == nil {
			return verdict, JudgedRemote, nil
		}
		s.log.Warn("remote judge unavailable, judging locally", "question_id", questionID, "error", err)
	}
	verdict, tier, err := s.fallback.Check(ctx, questionID, answer)
	if err != nil {
		s.log.Warn("answer cannot be verified", "question_id", questionID)
		return model.JudgeResult{}, "", err
	}
	return verdict, tier, nil
}

// snapshot collects what is known locally about a question for the wrong
// set, asking the question service only when the cache has nothing.
func (s *submitter) snapshot(ctx context.Context, id int64) model.Question {
	if q, ok, err := s.details.Get(ctx, id); err == nil && ok {
		return q
	}
	if s.questions != nil {
		q, err := s.questions.GetQuestion(ctx, id)
		if err == nil {
			return q
		}
		s.log.Debug("question detail unavailable for wrong set", "question_id", id, "error", err)
	}
	return model.Question{ID: id}
}
