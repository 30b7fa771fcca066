package practice

import (
	"context"

	"github.com/pavelanni/studyhub/internal/model"
)

// QuestionService looks up question content.
type QuestionService interface {
	GetQuestion(ctx context.Context, id int64) (model.Question, error)
	SearchQuestions(ctx context.Context, filters model.FilterSpec, page, pageSize int) (model.QuestionPage, error)
	CountQuestions(ctx context.Context) (int, error)
}

// Judge checks a submitted answer.
type Judge interface {
	Submit(ctx context.Context, req model.JudgeRequest) (model.JudgeResult, error)
}

// SessionStore is the remote copy of the practice session list.
type SessionStore interface {
	ListSessions(ctx context.Context) ([]model.AnswerSession, error)
	UpsertSession(ctx context.Context, sess model.AnswerSession) error
	MigrateSessions(ctx context.Context, sessions []model.AnswerSession, legacy []model.AnswerRecord) error
}

// Mirror is the remote copy of the favorite and wrong-question sets.
type Mirror interface {
	ToggleFavorite(ctx context.Context, questionID int64) (bool, error)
	ListFavorites(ctx context.Context) ([]model.FavoriteEntry, error)
	ListWrong(ctx context.Context) ([]model.WrongQuestionEntry, error)
	RemoveWrong(ctx context.Context, questionID int64) error
}
