package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kirillkom/code-explainer-uploader/internal/core/domain"
	"github.com/kirillkom/code-explainer-uploader/internal/core/ports"
	"github.com/kirillkom/code-explainer-uploader/internal/infrastructure/resilience"
)

// Client talks to the code explainer service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
	logger     *slog.Logger
}

type Options struct {
	HTTPClient         *http.Client
	ResilienceExecutor *resilience.Executor
	Logger             *slog.Logger
}

func New(baseURL string) *Client {
	return NewWithOptions(baseURL, Options{})
}

// NewWithOptions builds a client. The http.Client must not carry its own
// Timeout; deadlines come from each JobRequest.
func NewWithOptions(baseURL string, options Options) *Client {
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		executor:   options.ResilienceExecutor,
		logger:     logger,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Send uploads the request archive and returns the response as-is. Only a
// missed deadline (ErrTimeout) or a connectivity problem (ErrNetwork) is
// reported as an error.
func (c *Client) Send(ctx context.Context, req domain.JobRequest, onProgress ports.ProgressFunc) (domain.RawResponse, error) {
	operation := "send " + string(req.Kind)
	if !req.Kind.Valid() {
		return domain.RawResponse{}, domain.WrapError(domain.ErrInvalidInput, operation, fmt.Errorf("unknown job kind %q", req.Kind))
	}
	if req.Archive == nil {
		return domain.RawResponse{}, domain.WrapError(domain.ErrInvalidInput, operation, domain.ErrNoArchive)
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = domain.DefaultTimeout
	}

	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var raw domain.RawResponse
	call := func(callCtx context.Context) error {
		resp, err := c.upload(callCtx, req, onProgress)
		if err != nil {
			return err
		}
		raw = resp
		return nil
	}

	breakerOp := strings.TrimPrefix(req.Kind.Route(), "/")
	var err error
	if c.executor != nil {
		err = c.executor.Execute(sendCtx, breakerOp, call, classifyTransportError)
	} else {
		err = call(sendCtx)
	}
	if err != nil {
		err = wrapTransportError(sendCtx, operation, err)
		c.logger.Warn("transport_failed",
			"job_id", req.ID,
			"kind", req.Kind,
			"breaker", c.breakerState(breakerOp),
			"error", err,
		)
		return domain.RawResponse{}, err
	}

	c.logger.Debug("transport_response",
		"job_id", req.ID,
		"kind", req.Kind,
		"status", raw.StatusCode,
		"content_type", raw.ContentType,
		"body_bytes", len(raw.Body),
	)
	return raw, nil
}

func (c *Client) breakerState(operation string) string {
	if c.executor == nil {
		return "disabled"
	}
	return c.executor.State(operation)
}

// Health queries GET /health and returns the reported status.
func (c *Client) Health(ctx context.Context) (string, error) {
	var status string
	call := func(callCtx context.Context) error {
		req, err := http.NewRequestWithContext(callCtx, http.MethodGet, c.baseURL+"/health", nil)
		if err != nil {
			return fmt.Errorf("create health request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("health request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return &HTTPStatusError{
				Operation:  "health",
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Body:       string(body),
			}
		}

		var payload struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return fmt.Errorf("decode health response: %w", err)
		}
		status = payload.Status
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "health", call, classifyTransportError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTransportError(ctx, "health", err)
	}
	return status, nil
}
