package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
)

// Generator генерирует текст по промпту. Преамбула задаёт роль.
type Generator interface {
	Generate(ctx context.Context, preamble, prompt string) (string, error)
}

// CohereGenerator вызывает chat-эндпоинт Cohere.
type CohereGenerator struct {
	client      *cohereclient.Client
	model       string
	temperature float64
}

func NewCohereGenerator(apiKey, model string, temperature float64) (*CohereGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("COHERE_API_KEY is not set")
	}
	if model == "" {
		model = "command-r"
	}
	client := cohereclient.NewClient(
		cohereclient.WithToken(apiKey),
		cohereclient.WithHTTPClient(&http.Client{Timeout: 120 * time.Second}),
	)
	return &CohereGenerator{client: client, model: model, temperature: temperature}, nil
}

func (g *CohereGenerator) Generate(ctx context.Context, preamble, prompt string) (string, error) {
	req := &cohere.ChatRequest{
		Message:     prompt,
		Model:       cohere.String(g.model),
		Temperature: cohere.Float64(g.temperature),
	}
	if preamble != "" {
		req.Preamble = cohere.String(preamble)
	}
	resp, err := g.client.Chat(ctx, req)
	if err != nil {
		return "", fmt.Errorf("cohere chat error: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return "", errors.New("cohere chat returned empty text")
	}
	return resp.Text, nil
}

// IsRateLimited сообщает, похожа ли err на HTTP 429 от бэкенда.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "too many requests") || strings.Contains(msg, "rate limit")
}

// Unavailable возвращает Err на каждый вызов. Используется, когда бэкенд не
// настроен, и вызывающий код уходит в запасные варианты.
type Unavailable struct{ Err error }

func (u Unavailable) Generate(ctx context.Context, preamble, prompt string) (string, error) {
	return "", u.Err
}
