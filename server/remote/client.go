// Package remote implements the single transport path to the external
// preference and telephony endpoints. Timeout and backoff policy live
// here and nowhere else; callers never retry on their own.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/time/rate"

	"github.com/daybreakhq/daybreak/internal/errors"
	"github.com/daybreakhq/daybreak/server/schema"
)

// ClientOptions configures the remote client.
type ClientOptions struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	UserAgent  string

	// MaxRetries bounds retries on the read path. Writes and test calls
	// never retry: a phone call side effect must not be duplicated.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// RateLimit caps outbound requests per second; RateBurst is the
	// bucket size. Zero values disable limiting.
	RateLimit rate.Limit
	RateBurst int
}

// Client talks to the remote preference endpoint and the telephony
// collaborator's test-call endpoint.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	limiter    *rate.Limiter
}

// NewClient creates a remote client with bounded timeouts and backoff.
func NewClient(opts ClientOptions) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(opts.RateLimit, burst)
	}
	return &Client{
		baseURL:    baseURL,
		token:      opts.Token,
		httpClient: httpClient,
		userAgent:  strings.TrimSpace(opts.UserAgent),
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		limiter:    limiter,
	}
}

// preferenceEnvelope is the wire envelope around preference payloads.
type preferenceEnvelope struct {
	Success     bool               `json:"success"`
	Preferences *schema.WireRecord `json:"preferences"`
	Error       string             `json:"error,omitempty"`
}

// testCallEnvelope is the wire envelope around test-call responses.
type testCallEnvelope struct {
	Success         bool   `json:"success"`
	CallReferenceID string `json:"callReferenceId,omitempty"`
	Error           string `json:"error,omitempty"`
}

// FetchPreferences issues a GET for the user's wire record. A 404 returns
// (nil, nil): the caller creates the record lazily from defaults.
// Transient failures (network errors, 429, 5xx) are retried with capped
// exponential backoff up to MaxRetries.
func (c *Client) FetchPreferences(ctx context.Context, userID string) (*schema.WireRecord, error) {
	path := fmt.Sprintf("/v1/users/%s/call-preferences", userID)

	var envelope preferenceEnvelope
	notFound, err := c.do(ctx, http.MethodGet, path, nil, &envelope, c.maxRetries)
	if err != nil {
		return nil, err
	}
	if notFound {
		return nil, nil
	}
	if !envelope.Success || envelope.Preferences == nil {
		return nil, errors.Schema(fmt.Sprintf("preference fetch envelope malformed: %s", envelope.Error), nil)
	}
	return envelope.Preferences, nil
}

// UpdatePreferences issues a PUT with the wire patch and returns the
// updated record as confirmed by the remote. Never retried: the caller
// must know unambiguously whether the mutation landed.
func (c *Client) UpdatePreferences(ctx context.Context, userID string, patch *schema.WireRecord) (*schema.WireRecord, error) {
	path := fmt.Sprintf("/v1/users/%s/call-preferences", userID)

	var envelope preferenceEnvelope
	notFound, err := c.do(ctx, http.MethodPut, path, patch, &envelope, 0)
	if err != nil {
		return nil, err
	}
	if notFound {
		return nil, errors.Transport("preference update target not found", nil)
	}
	if !envelope.Success || envelope.Preferences == nil {
		return nil, errors.Schema(fmt.Sprintf("preference update envelope malformed: %s", envelope.Error), nil)
	}
	return envelope.Preferences, nil
}

// TriggerTestCall asks the telephony collaborator to place a one-shot test
// call. Never retried.
func (c *Client) TriggerTestCall(ctx context.Context, userID string) (string, error) {
	path := fmt.Sprintf("/v1/users/%s/calls/test", userID)

	var envelope testCallEnvelope
	notFound, err := c.do(ctx, http.MethodPost, path, struct{}{}, &envelope, 0)
	if err != nil {
		return "", err
	}
	if notFound {
		return "", errors.Transport("test call target not found", nil)
	}
	if !envelope.Success {
		return "", errors.Transport(fmt.Sprintf("test call rejected: %s", envelope.Error), nil)
	}
	return envelope.CallReferenceID, nil
}

// do runs one logical request, retrying transient failures up to
// maxRetries. It reports not-found separately so callers can implement
// lazy-create semantics. All failures come back as typed sync errors.
func (c *Client) do(ctx context.Context, method, path string, payload any, out any, maxRetries int) (notFound bool, err error) {
	var bodyBytes []byte
	if payload != nil {
		bodyBytes, err = json.Marshal(payload)
		if err != nil {
			return false, errors.Schema("failed to encode request payload", err)
		}
	}
	url := c.baseURL + path
	correlationID := shortuuid.New()

	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if waitErr := c.limiter.Wait(ctx); waitErr != nil {
				return false, classifyTransport(waitErr)
			}
		}

		var body io.Reader
		if bodyBytes != nil {
			body = bytes.NewReader(bodyBytes)
		}
		req, reqErr := http.NewRequestWithContext(ctx, method, url, body)
		if reqErr != nil {
			return false, errors.Transport("failed to build request", reqErr)
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Correlation-Id", correlationID)
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		resp, doErr := c.httpClient.Do(req)
		if doErr != nil {
			if attempt < maxRetries {
				if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return false, classifyTransport(waitErr)
				}
				continue
			}
			return false, classifyTransport(doErr)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return false, errors.Transport("failed to read response body", readErr)
		}

		if resp.StatusCode == http.StatusNotFound {
			return true, nil
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if out == nil {
				return false, nil
			}
			if jsonErr := json.Unmarshal(respBody, out); jsonErr != nil {
				return false, errors.Schema("malformed response body", jsonErr)
			}
			return false, nil
		}

		if (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500) && attempt < maxRetries {
			if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return false, classifyTransport(waitErr)
			}
			continue
		}

		message := strings.TrimSpace(string(respBody))
		var parsed map[string]any
		if json.Unmarshal(respBody, &parsed) == nil {
			if m, ok := parsed["error"].(string); ok && strings.TrimSpace(m) != "" {
				message = m
			}
		}
		return false, errors.Transport(fmt.Sprintf("remote returned status %d: %s", resp.StatusCode, message), nil).
			WithContext("status", resp.StatusCode)
	}
}

func (c *Client) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfterSeconds(retryAfterHeader); retryAfter > 0 {
		if retryAfter > c.maxDelay {
			return c.maxDelay
		}
		return retryAfter
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	if delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

func parseRetryAfterSeconds(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// classifyTransport maps low-level transport failures onto the error
// taxonomy: deadline overruns become TIMEOUT, everything else TRANSPORT.
func classifyTransport(err error) *errors.SyncError {
	if err == nil {
		return nil
	}
	if isTimeout(err) {
		return errors.Timeout("remote operation exceeded its deadline", err)
	}
	return errors.Transport("remote endpoint unreachable", err)
}

func isTimeout(err error) bool {
	if err == context.DeadlineExceeded {
		return true
	}
	type timeout interface{ Timeout() bool }
	for e := err; e != nil; e = unwrap(e) {
		if t, ok := e.(timeout); ok && t.Timeout() {
			return true
		}
		if e == context.DeadlineExceeded {
			return true
		}
	}
	return false
}

func unwrap(err error) error {
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		return u.Unwrap()
	}
	return nil
}
