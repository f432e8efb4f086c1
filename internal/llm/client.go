// Package llm вызывает OpenAI-совместимые эндпоинты генерации текста (по умолчанию Groq).
package llm

import (
	"context"
	"errors"
	"fmt"
	"math"

	openai "github.com/sashabaranov/go-openai"

	"github.com/magabrotheeeer/dhanrekha/internal/config"
	"github.com/magabrotheeeer/dhanrekha/internal/metrics"
)

// ErrEmptyResponse модель не вернула ни одного варианта ответа.
var ErrEmptyResponse = errors.New("empty completion")

// Completer отправляет промпт модели и возвращает текст ответа.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Client делегат одной модели со своим ключом, адресом и таймаутом.
type Client struct {
	api  *openai.Client
	cfg  config.LLM
	name string
}

// New создаёт клиента. name используется как метка в метриках.
func New(name string, cfg config.LLM) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Client{
		api:  openai.NewClientWithConfig(clientCfg),
		cfg:  cfg,
		name: name,
	}
}

// zeroTemperature нулевая температура. Поле Temperature помечено omitempty,
// поэтому ноль в запрос не попадает.
const zeroTemperature = math.SmallestNonzeroFloat32

// Complete выполняет один запрос chat completion с нулевой температурой.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	const op = "llm.Complete"
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	timer := metrics.NewLLMTimer(c.name)
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: zeroTemperature,
	})
	if err != nil {
		timer.Observe(metrics.StatusError)
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if len(resp.Choices) == 0 {
		timer.Observe(metrics.StatusError)
		return "", fmt.Errorf("%s: %w", op, ErrEmptyResponse)
	}
	timer.Observe(metrics.StatusOK)
	return resp.Choices[0].Message.Content, nil
}
