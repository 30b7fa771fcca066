package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/studyhub/internal/llm/prompts"
	"github.com/pavelanni/studyhub/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// ExplainResult is the JSON object the model is asked to return.
type ExplainResult struct {
	Explanation string `json:"explanation"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	model   string
	variant prompts.Variant
}

// New creates a new LLM client. An unknown variant falls back to brief.
func New(baseURL, apiKey, modelName, variant string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	v := prompts.VariantBrief
	if prompts.IsValidVariant(variant) {
		v = prompts.Variant(variant)
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		variant: v,
	}
}

// Explain asks the model why the correct answer of q is right, taking the
// learner's submitted answer into account. lang is the language to answer in.
func (c *Client) Explain(ctx context.Context, q model.Question, submitted, lang string) (string, error) {
	prompt, err := prompts.BuildExplain(c.variant, explainData(q, submitted, lang))
	if err != nil {
		return "", fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "question_id", q.ID, "raw", raw)
	return parseExplanation(raw)
}

func explainData(q model.Question, submitted, lang string) prompts.ExplainData {
	return prompts.ExplainData{
		Content:       q.Content,
		Options:       q.Options,
		CorrectAnswer: q.Answer,
		Submitted:     submitted,
		Language:      languageName(lang),
	}
}

func parseExplanation(raw string) (string, error) {
	var result ExplainResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return "", fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	text := strings.TrimSpace(result.Explanation)
	if text == "" {
		return "", fmt.Errorf("LLM returned an empty explanation")
	}
	return text, nil
}

func languageName(tag string) string {
	switch strings.ToLower(tag) {
	case "zh", "zh-cn", "zh-hans":
		return "Simplified Chinese"
	case "ru":
		return "Russian"
	}
	return "English"
}
