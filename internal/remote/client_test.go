package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/studyhub/internal/model"
	"github.com/pavelanni/studyhub/internal/practice"
)

var (
	_ practice.QuestionService = (*Client)(nil)
	_ practice.Judge           = (*Client)(nil)
	_ practice.SessionStore    = (*Client)(nil)
	_ practice.Mirror          = (*Client)(nil)
)

func TestSearchQuestionsQuery(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		_ = json.NewEncoder(w).Encode(model.QuestionPage{Total: 3, Page: 2, PageSize: 1, Questions: []model.Question{{ID: 2}}})
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("tok"))
	page, err := c.SearchQuestions(context.Background(), model.FilterSpec{Years: []string{"2022", "2021"}, Keyword: "tcp"}, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Questions, 1)

	assert.Equal(t, "/api/questions", got.URL.Path)
	assert.Equal(t, []string{"2021", "2022"}, got.URL.Query()["year"])
	assert.Equal(t, "tcp", got.URL.Query().Get("keyword"))
	assert.Equal(t, "2", got.URL.Query().Get("page"))
	assert.Equal(t, "Bearer tok", got.Header.Get("Authorization"))
}

func TestSubmitSendsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req model.JudgeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "anon-1", r.Header.Get(HeaderClientSession))
		_ = json.NewEncoder(w).Encode(model.JudgeResult{IsCorrect: req.SubmittedAnswer == "AC", CorrectAnswer: "AC"})
	}))
	defer srv.Close()

	c := New(srv.URL, WithClientSession("anon-1"))
	res, err := c.Submit(context.Background(), model.JudgeRequest{QuestionID: 1, SubmittedAnswer: "AC", SessionID: "s"})
	require.NoError(t, err)
	assert.True(t, res.IsCorrect)
}

func TestErrorsClassified(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		unavailable bool
	}{
		{"server error", http.StatusBadGateway, true},
		{"not found", http.StatusNotFound, false},
		{"unauthorized", http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"boom"}`))
			}))
			defer srv.Close()

			_, err := New(srv.URL).GetQuestion(context.Background(), 1)
			require.Error(t, err)
			assert.Equal(t, tt.unavailable, errors.Is(err, ErrUnavailable))
			if !tt.unavailable {
				var se *StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, tt.status, se.Code)
				assert.Equal(t, "boom", se.Message)
			}
		})
	}
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).CountQuestions(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestScopedCallsNeedIdentity(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.ListSessions(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, ErrNoIdentity)
	assert.ErrorIs(t, c.RemoveWrong(context.Background(), 1), ErrNoIdentity)
	assert.False(t, called)
}

func TestSessionCalls(t *testing.T) {
	mux := http.NewServeMux()
	var upserted model.AnswerSession
	var migrated MigrateRequest
	mux.HandleFunc("PUT /api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&upserted))
		assert.Equal(t, "s-1", r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/sessions/migrate", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&migrated))
		_ = json.NewEncoder(w).Encode(MigrateResponse{Migrated: len(migrated.Sessions)})
	})
	mux.HandleFunc("GET /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]model.AnswerSession{{SessionID: "s-1", QuestionsAnswered: 2}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, WithToken("t"))
	ctx := context.Background()
	require.NoError(t, c.UpsertSession(ctx, model.AnswerSession{SessionID: "s-1", QuestionsAnswered: 2}))
	assert.Equal(t, 2, upserted.QuestionsAnswered)

	require.NoError(t, c.MigrateSessions(ctx, []model.AnswerSession{{SessionID: "s-2"}}, []model.AnswerRecord{{QuestionID: 4}}))
	assert.Len(t, migrated.Sessions, 1)
	assert.Len(t, migrated.Legacy, 1)

	list, err := c.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestMirrorCalls(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/favorites/{id}/toggle", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]bool{"favorite": true})
	})
	mux.HandleFunc("DELETE /api/wrong/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/wrong", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]model.WrongQuestionEntry{{ID: 5, CorrectAnswer: "B"}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, WithClientSession("anon"))
	ctx := context.Background()
	on, err := c.ToggleFavorite(ctx, 5)
	require.NoError(t, err)
	assert.True(t, on)
	require.NoError(t, c.RemoveWrong(ctx, 5))
	wrong, err := c.ListWrong(ctx)
	require.NoError(t, err)
	assert.Equal(t, "B", wrong[0].CorrectAnswer)
}
