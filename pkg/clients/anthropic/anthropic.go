package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/flockwatch/internal/domain/models"
)

const (
	apiURL     = "https://api.anthropic.com/v1/messages"
	apiVersion = "2023-06-01"
	model      = "claude-3-haiku-20240307"
	maxTokens  = 512
)

const systemPrompt = `You are the assistant of a poultry farm manager. You receive the farm's new
high-priority findings as JSON. Write a WhatsApp message of at most 6 short lines:
one line per finding with the batch or scope and the action to take, most urgent first.
Plain text only, no markdown.`

// Summarizer turns insight lists into a short digest.
type Summarizer struct {
	httpClient *resty.Client
	url        string
}

// NewClient creates a configured Anthropic client.
func NewClient(apiKey string) *Summarizer {
	client := resty.New().
		SetHeader("x-api-key", apiKey).
		SetHeader("anthropic-version", apiVersion).
		SetHeader("content-type", "application/json").
		SetTimeout(15 * time.Second).
		SetRetryCount(1)

	return &Summarizer{httpClient: client, url: apiURL}
}

type messageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

type finding struct {
	Scope          string `json:"scope"`
	Title          string `json:"title"`
	Message        string `json:"message"`
	Recommendation string `json:"recommendation"`
}

// Summarize asks the model for a digest of the given insights.
func (c *Summarizer) Summarize(ctx context.Context, insights []models.Insight) (string, error) {
	if len(insights) == 0 {
		return "", nil
	}

	findings := make([]finding, 0, len(insights))
	for _, in := range insights {
		findings = append(findings, finding{Scope: in.Scope, Title: in.Title, Message: in.Message, Recommendation: in.Recommendation})
	}
	payload, err := json.Marshal(findings)
	if err != nil {
		return "", fmt.Errorf("encode insights: %w", err)
	}

	var respBody messageResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(messageRequest{
			Model:     model,
			MaxTokens: maxTokens,
			System:    systemPrompt,
			Messages:  []message{{Role: "user", Content: string(payload)}},
		}).
		SetResult(&respBody).
		Post(c.url)
	if err != nil {
		return "", fmt.Errorf("anthropic api call: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("anthropic api error: status=%d body=%s", resp.StatusCode(), resp.String())
	}
	if len(respBody.Content) == 0 {
		return "", errors.New("empty response from ai")
	}

	return strings.TrimSpace(respBody.Content[0].Text), nil
}
