// Package remote implements the practice engine's collaborators over the
// studyhub backend's JSON API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pavelanni/studyhub/internal/model"
)

// HeaderClientSession carries the anonymous client id.
const HeaderClientSession = "X-Client-Session"

var (
	// ErrUnavailable means the backend could not be reached or failed
	// server-side. Callers recover locally.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrNoIdentity means an identity-scoped call was made without one.
	ErrNoIdentity = errors.New("no identity for scoped call")
)

// StatusError is a non-2xx response that is not a server failure.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Message)
}

// Client talks to the studyhub backend.
type Client struct {
	baseURL       string
	http          *http.Client
	token         string
	clientSession string
	log           *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithToken authenticates requests with a bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithClientSession scopes requests to an anonymous client id.
func WithClientSession(id string) Option {
	return func(c *Client) { c.clientSession = id }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HasIdentity reports whether requests carry a user or client identity.
func (c *Client) HasIdentity() bool {
	return c.token != "" || c.clientSession != ""
}

// GetQuestion fetches one question with its answer.
func (c *Client) GetQuestion(ctx context.Context, id int64) (model.Question, error) {
	var q model.Question
	err := c.do(ctx, http.MethodGet, "/api/questions/"+strconv.FormatInt(id, 10), nil, nil, &q)
	return q, err
}

// SearchQuestions returns one page of questions matching filters.
func (c *Client) SearchQuestions(ctx context.Context, filters model.FilterSpec, page, pageSize int) (model.QuestionPage, error) {
	q := filters.Values()
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	var res model.QuestionPage
	err := c.do(ctx, http.MethodGet, "/api/questions", q, nil, &res)
	return res, err
}

// CountQuestions returns the total number of questions.
func (c *Client) CountQuestions(ctx context.Context) (int, error) {
	var res struct {
		Count int `json:"count"`
	}
	err := c.do(ctx, http.MethodGet, "/api/questions/count", nil, nil, &res)
	return res.Count, err
}

// Submit sends an answer to the backend judge.
func (c *Client) Submit(ctx context.Context, req model.JudgeRequest) (model.JudgeResult, error) {
	var res model.JudgeResult
	err := c.do(ctx, http.MethodPost, "/api/answers", nil, req, &res)
	return res, err
}

// ListSessions returns the sessions stored for the current identity.
func (c *Client) ListSessions(ctx context.Context) ([]model.AnswerSession, error) {
	if err := c.requireIdentity(); err != nil {
		return nil, err
	}
	var res []model.AnswerSession
	err := c.do(ctx, http.MethodGet, "/api/sessions", nil, nil, &res)
	return res, err
}

// UpsertSession stores sess for the current identity.
func (c *Client) UpsertSession(ctx context.Context, sess model.AnswerSession) error {
	if err := c.requireIdentity(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, "/api/sessions/"+url.PathEscape(sess.SessionID), nil, sess, nil)
}

// MigrateRequest is the body of a bulk session migration.
type MigrateRequest struct {
	Sessions []model.AnswerSession `json:"sessions"`
	Legacy   []model.AnswerRecord  `json:"legacy,omitempty"`
}

// MigrateResponse reports how many sessions the backend accepted.
type MigrateResponse struct {
	Migrated int `json:"migrated"`
	Legacy   int `json:"legacy"`
}

// MigrateSessions pushes locally created sessions and legacy records.
func (c *Client) MigrateSessions(ctx context.Context, sessions []model.AnswerSession, legacy []model.AnswerRecord) error {
	if err := c.requireIdentity(); err != nil {
		return err
	}
	var res MigrateResponse
	if err := c.do(ctx, http.MethodPost, "/api/sessions/migrate", nil, MigrateRequest{Sessions: sessions, Legacy: legacy}, &res); err != nil {
		return err
	}
	c.log.Debug("sessions migrated", "sent", len(sessions), "accepted", res.Migrated, "legacy", res.Legacy)
	return nil
}

// ToggleFavorite flips the favorite flag and returns the new state.
func (c *Client) ToggleFavorite(ctx context.Context, questionID int64) (bool, error) {
	if err := c.requireIdentity(); err != nil {
		return false, err
	}
	var res struct {
		Favorite bool `json:"favorite"`
	}
	err := c.do(ctx, http.MethodPost, "/api/favorites/"+strconv.FormatInt(questionID, 10)+"/toggle", nil, nil, &res)
	return res.Favorite, err
}

// ListFavorites returns the favorite questions of the current identity.
func (c *Client) ListFavorites(ctx context.Context) ([]model.FavoriteEntry, error) {
	if err := c.requireIdentity(); err != nil {
		return nil, err
	}
	var res []model.FavoriteEntry
	err := c.do(ctx, http.MethodGet, "/api/favorites", nil, nil, &res)
	return res, err
}

// ListWrong returns the wrong-question set of the current identity.
func (c *Client) ListWrong(ctx context.Context) ([]model.WrongQuestionEntry, error) {
	if err := c.requireIdentity(); err != nil {
		return nil, err
	}
	var res []model.WrongQuestionEntry
	err := c.do(ctx, http.MethodGet, "/api/wrong", nil, nil, &res)
	return res, err
}

// RemoveWrong drops a question from the wrong-question set.
func (c *Client) RemoveWrong(ctx context.Context, questionID int64) error {
	if err := c.requireIdentity(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, "/api/wrong/"+strconv.FormatInt(questionID, 10), nil, nil, nil)
}

func (c *Client) requireIdentity() error {
	if !c.HasIdentity() {
		return fmt.Errorf("%w: %w", ErrUnavailable, ErrNoIdentity)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	case c.clientSession != "":
		req.Header.Set(HeaderClientSession, c.clientSession)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		msg := readError(resp.Body)
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: %s %s: %d %s", ErrUnavailable, method, path, resp.StatusCode, msg)
		}
		return &StatusError{Code: resp.StatusCode, Message: msg}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", ErrUnavailable, path, err)
	}
	return nil
}

func readError(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}
