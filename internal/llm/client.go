// Package llm wraps the Anthropic API behind a multi-model-fallback
// completion client. A single Complete call walks an ordered list of model
// tiers from most to least capable, downgrading on rate limits and backing
// off exponentially once no lower tier remains.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	// defaultMaxRetries is the retry ceiling at a single tier. A model
	// switch resets the counter; downgrades are not charged against it.
	defaultMaxRetries = 3

	// defaultBackoff is the initial backoff interval, doubled on each retry.
	defaultBackoff = 2 * time.Second

	defaultMaxTokens = 4000
)

// Result is a successful completion. Callers should compare Model against
// the top tier (or check Downgraded) to detect that a less capable model
// produced the text.
type Result struct {
	Text       string
	Model      string
	Downgraded bool
	Attempts   int
}

// Client is a completion client with prioritized model fallback. The model
// list is read-only and safe for concurrent use; each Complete call owns its
// own tier cursor, so concurrent reviewer-runs never affect each other's
// starting tier.
type Client struct {
	api        *anthropic.Client
	models     []string
	maxRetries int
	backoff    time.Duration
	maxTokens  int64
	logger     *slog.Logger

	// sleep and invoke are replaceable in tests.
	sleep  func(ctx context.Context, d time.Duration) error
	invoke func(ctx context.Context, model, system, user string) (string, error)
}

// NewClient creates a completion client. The models slice is ordered from
// most capable to least capable and must not be empty.
func NewClient(apiKey string, modelTiers []string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	api := anthropic.NewClient(opts...)

	c := &Client{
		api:        &api,
		models:     modelTiers,
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
		maxTokens:  defaultMaxTokens,
		logger:     slog.Default(),
		sleep:      sleepCtx,
	}
	c.invoke = c.createMessage
	return c
}

// Models returns the configured tier list, top tier first.
func (c *Client) Models() []string { return c.models }

// Complete sends systemPrompt and userText to the completion service and
// returns the generated text verbatim. On a rate limit it downgrades to the
// next tier (retry counter reset, no sleep); at the lowest tier it retries
// with exponential backoff up to the ceiling. Authentication and
// malformed-request errors fail immediately without retry or downgrade.
func (c *Client) Complete(ctx context.Context, systemPrompt, userText string) (*Result, error) {
	if len(c.models) == 0 {
		return nil, fmt.Errorf("no models configured")
	}

	tier := 0
	retries := 0
	attempts := 0
	backoff := c.backoff

	for {
		model := c.models[tier]
		attempts++

		text, err := c.invoke(ctx, model, systemPrompt, userText)
		if err == nil {
			c.logger.Debug("completion succeeded", "model", model, "attempts", attempts)
			return &Result{
				Text:       text,
				Model:      model,
				Downgraded: tier > 0,
				Attempts:   attempts,
			}, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		kind := Classify(err)
		switch kind {
		case KindRateLimited, KindModelUnavailable:
			if tier < len(c.models)-1 {
				tier++
				retries = 0
				c.logger.Warn("downgrading model", "from", model, "to", c.models[tier], "reason", kind.String())
				continue
			}
			// No lower tier left: fall through to the backoff retry loop
			// on the last model.
			retries++
			if retries >= c.maxRetries {
				return nil, &ExhaustedError{Models: c.models[:tier+1], Attempts: attempts, Kind: kind}
			}
			c.logger.Warn("retrying lowest tier after backoff",
				"model", model, "attempt", retries, "max", c.maxRetries, "backoff", backoff)

		case KindAuthFailed, KindInvalidInput:
			return nil, &ClassifiedError{Kind: kind, Err: err}

		default:
			retries++
			if retries >= c.maxRetries {
				return nil, &ExhaustedError{Models: c.models[:tier+1], Attempts: attempts, Kind: kind}
			}
			c.logger.Warn("transient completion error, retrying",
				"model", model, "attempt", retries, "max", c.maxRetries, "error", err)
		}

		if err := c.sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
	}
}

// createMessage performs one raw completion call against the Anthropic API.
func (c *Client) createMessage(ctx context.Context, model, system, user string) (string, error) {
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call: %w", err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in API response")
}

// sleepCtx blocks for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
