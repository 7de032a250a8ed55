// Package assistant wraps the generative-language fallback used when no rule applies.
//
// Failures never surface as Go errors to callers; every call yields a Result tagged with
// an Outcome, and the caller decides what text to show for each outcome.
package assistant

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
)

// SystemInstruction sets the tone of every fallback reply.
const SystemInstruction = "You are a helpful customer support assistant for an e-commerce store. " +
	"Be friendly, concise, and helpful. Do not over-apologize; acknowledge problems once and focus on next steps."

type Outcome string

const (
	Success        Outcome = "success"
	NotConfigured  Outcome = "not_configured"
	Timeout        Outcome = "timeout"
	TransportError Outcome = "transport_error"
	ServiceError   Outcome = "service_error"
)

type Result struct {
	Outcome Outcome
	Text    string
	Err     error
}

// Provider performs one completion against a concrete service.
type Provider interface {
	Name() string
	Complete(ctx context.Context, system, message string) (string, error)
}

var errEmptyCompletion = errors.New("assistant: empty completion")

const defaultTimeout = 20 * time.Second

// Client is the adapter the dispatcher talks to. A nil provider means no credential is configured.
type Client struct {
	provider Provider
	timeout  time.Duration
	logger   *zap.Logger
}

func New(provider Provider, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{provider: provider, timeout: timeout, logger: logger}
}

func (c *Client) Configured() bool { return c != nil && c.provider != nil }

// Reply asks the provider for an answer to message.
func (c *Client) Reply(ctx context.Context, message string) Result {
	if !c.Configured() {
		return Result{Outcome: NotConfigured}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	text, err := c.provider.Complete(ctx, SystemInstruction, message)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errEmptyCompletion
	}
	if err != nil {
		outcome := classify(err)
		c.logger.Warn("assistant call failed",
			zap.String("provider", c.provider.Name()),
			zap.String("outcome", string(outcome)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return Result{Outcome: outcome, Err: err}
	}
	c.logger.Debug("assistant call succeeded",
		zap.String("provider", c.provider.Name()),
		zap.Duration("elapsed", time.Since(start)))
	return Result{Outcome: Success, Text: strings.TrimSpace(text)}
}

func classify(err error) Outcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	var gErr *googleapi.Error
	switch {
	case errors.As(err, &apiErr), errors.As(err, &reqErr), errors.As(err, &gErr):
		return ServiceError
	case errors.Is(err, errEmptyCompletion):
		return ServiceError
	}
	return TransportError
}
