// Package api is the REST client for the catalog and chat endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/agent-console/pkg/logger"
	"github.com/capitalize-ai/agent-console/pkg/metrics"
)

const (
	defaultTimeout = 10 * time.Second
	tracerName     = "github.com/capitalize-ai/agent-console/internal/api"
)

// ErrUnsuccessful is returned when an endpoint answers {"success": false}.
var ErrUnsuccessful = errors.New("request reported success=false")

// Options configures a Client.
type Options struct {
	// Token is sent as a bearer token when set.
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logger.Logger
}

// Client talks to the product API.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	client  *http.Client
	log     *logger.Logger
}

// NewClient creates a client for baseURL, e.g. "https://host/api".
func NewClient(baseURL string, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   opts.Token,
		timeout: timeout,
		client:  httpClient,
		log:     logger.OrGlobal(opts.Logger).Named("api"),
	}
}

// RequestError is a non-2xx response.
type RequestError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RequestError) Error() string {
	if e == nil {
		return ""
	}
	code := strings.TrimSpace(e.Code)
	message := strings.TrimSpace(e.Message)
	switch {
	case code != "" && message != "":
		return fmt.Sprintf("%s: %s", code, message)
	case message != "":
		return fmt.Sprintf("http %d: %s", e.StatusCode, message)
	case code != "":
		return code
	default:
		return fmt.Sprintf("http %d", e.StatusCode)
	}
}

// Retryable reports whether repeating the request may succeed.
func (e *RequestError) Retryable() bool {
	if e == nil {
		return false
	}
	if e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusRequestTimeout {
		return true
	}
	return e.StatusCode >= 500
}

// IsRetryable reports whether err is a RequestError worth repeating.
func IsRetryable(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && re.Retryable()
}

// IsNotFound reports whether err is a 404 RequestError.
func IsNotFound(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && re.StatusCode == http.StatusNotFound
}

// Ack is the {"success": bool} body returned by action endpoints.
type Ack struct {
	Success bool `json:"success"`
}

func (c *Client) getJSON(ctx context.Context, ep endpoint, query url.Values, out any) error {
	body, err := c.request(ctx, http.MethodGet, ep, query, nil)
	if err != nil {
		return err
	}
	return decode(body, out, ep.path)
}

func (c *Client) sendJSON(ctx context.Context, method string, ep endpoint, in, out any) error {
	body, err := c.request(ctx, method, ep, nil, in)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decode(body, out, ep.path)
}

// ack performs an action endpoint and checks its success flag. An empty body counts as success.
func (c *Client) ack(ctx context.Context, method string, ep endpoint, in any) error {
	body, err := c.request(ctx, method, ep, nil, in)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if success := gjson.GetBytes(body, "success"); success.Exists() && !success.Bool() {
		return fmt.Errorf("%s %s: %w", method, ep.path, ErrUnsuccessful)
	}
	return nil
}

func decode(body []byte, out any, path string) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) request(ctx context.Context, method string, ep endpoint, query url.Values, body any) ([]byte, error) {
	path := ep.path
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "api."+method+" "+ep.route, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", ep.route),
		attribute.String("url.path", path),
	)

	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > c.timeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reqBody io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reqBody = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, err
	}
	correlationID := CorrelationID(ctx)
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Correlation-ID", correlationID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RecordRequest(method, ep.route, "transport_error", time.Since(start).Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	payload, err := io.ReadAll(resp.Body)
	metrics.RecordRequest(method, ep.route, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode >= 400 {
		reqErr := &RequestError{
			StatusCode: resp.StatusCode,
			Code:       fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message:    strings.TrimSpace(string(payload)),
		}
		// {"error": "..."} or {"error": {"code": "...", "message": "..."}}
		if e := gjson.GetBytes(payload, "error"); e.Exists() {
			if e.IsObject() {
				if code := e.Get("code").String(); code != "" {
					reqErr.Code = code
				}
				reqErr.Message = e.Get("message").String()
			} else {
				reqErr.Message = e.String()
			}
		}
		span.SetStatus(codes.Error, reqErr.Error())
		c.log.Debug("request failed",
			zap.String("method", method),
			zap.String("route", ep.route),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("correlation_id", correlationID),
		)
		return nil, reqErr
	}

	return payload, nil
}
