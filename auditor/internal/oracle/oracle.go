// Package oracle is the client side of the external reasoning service the
// audit consults for semantic judgement: a prompt (optionally with an
// image) goes in, a strict JSON object comes out.
//
// Replies are never trusted as text. Every caller declares the expected
// shape as a Go struct and goes through Ask, which rejects unknown fields,
// trailing data and shapes that fail the struct's Validate method.
//
//	o := oracle.New(oracle.Config{Endpoint: "http://localhost:11434", Model: "llama3.2-vision"}, logger)
//	var out struct{ KeepIndices []int `json:"keep_indices"` }
//	err := oracle.Ask(ctx, o, oracle.Prompt{Text: p}, &out)
package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrDisabled is returned by the oracle used when no endpoint is configured.
var ErrDisabled = errors.New("oracle: disabled")

// Prompt is one request to the oracle.
type Prompt struct {
	Text string
	// ImagePNG is an optional base64-encoded PNG sent alongside Text.
	ImagePNG string
	// Temperature overrides the client default when > 0.
	Temperature float64
}

// Oracle answers prompts.
type Oracle interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// Func adapts a function to Oracle.
type Func func(ctx context.Context, p Prompt) (string, error)

func (f Func) Complete(ctx context.Context, p Prompt) (string, error) { return f(ctx, p) }

// Disabled always fails with ErrDisabled. Stages treat that like any other
// oracle failure and degrade.
type Disabled struct{}

func (Disabled) Complete(context.Context, Prompt) (string, error) { return "", ErrDisabled }

// Config configures the oracle client.
type Config struct {
	// Endpoint is the base URL of an OpenAI-compatible chat server.
	// Empty = Disabled.
	Endpoint    string        `yaml:"endpoint"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"` // 0 = 2 retries, negative = none
	Backoff     time.Duration `yaml:"backoff"`

	// BreakerThreshold consecutive failures open the circuit for BreakerReset.
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerReset     time.Duration `yaml:"breaker_reset"`
}

func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = "gemini-2.5-flash-lite"
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	} else if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.Backoff <= 0 {
		c.Backoff = 500 * time.Millisecond
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = 5
	}
	if c.BreakerReset <= 0 {
		c.BreakerReset = 30 * time.Second
	}
}

// New builds the production oracle: an HTTP chat client wrapped with panic
// recovery, call logging, a circuit breaker, retries and a per-attempt
// timeout. An empty endpoint yields Disabled.
func New(cfg Config, logger *slog.Logger) Oracle {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Endpoint == "" {
		logger.Info("oracle: no endpoint configured, semantic stages will degrade")
		return Disabled{}
	}
	cfg.defaults()

	return Chain(newChatClient(cfg),
		WithRecovery(logger),
		WithLogging(logger),
		WithBreaker(NewBreaker(cfg.BreakerThreshold, cfg.BreakerReset)),
		WithRetry(cfg.MaxRetries, cfg.Backoff, logger),
		WithTimeout(cfg.Timeout),
	)
}

// Ask sends p and decodes the reply into v (a pointer to the expected
// shape). Any transport error or shape violation is returned; callers
// decide how to degrade.
func Ask(ctx context.Context, o Oracle, p Prompt, v any) error {
	reply, err := o.Complete(ctx, p)
	if err != nil {
		return err
	}
	if err := Decode(reply, v); err != nil {
		return fmt.Errorf("oracle: %w", err)
	}
	return nil
}
