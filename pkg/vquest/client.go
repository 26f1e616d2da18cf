// Package vquest submits sequences to the IMGT/V-QUEST web service and turns
// its responses into normalized per-sequence results.
package vquest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/cll-genie-server/internal/domain"
)

const (
	// DefaultURL is the public V-QUEST analysis endpoint.
	DefaultURL = "https://www.imgt.org/IMGT_vquest/analysis"
	// DefaultUserAgent is sent with every request; V-QUEST rejects unknown agents.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

// User-facing transport messages.
const (
	msgConnectionFailed = "Request failed with error 'Failed to establish a new connection'"
	msgCircuitOpen      = "Request failed with error 'V-QUEST is temporarily unavailable'"
)

// ErrConnection marks a request that never produced an HTTP response.
var ErrConnection = errors.New("vquest connection failed")

var errServerStatus = errors.New("vquest server error")

// Response is the raw outcome of one POST to V-QUEST.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Poster sends a form-encoded request to V-QUEST.
type Poster interface {
	Post(ctx context.Context, form url.Values) (*Response, error)
}

// Client posts analysis requests to V-QUEST. It never retries: a failed
// submission is reported to the caller who decides whether to resubmit.
type Client struct {
	url        string
	userAgent  string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Logger
}

// NewClient creates a new V-QUEST client
func NewClient(config domain.VQuestConfig, logger *logrus.Logger) *Client {
	if config.URL == "" {
		config.URL = DefaultURL
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Minute
	}
	if config.RateLimit == 0 {
		config.RateLimit = 1
	}

	cb := config.CircuitBreaker
	if cb.MinRequests == 0 {
		cb.MinRequests = 3
	}
	if cb.FailureRatio == 0 {
		cb.FailureRatio = 0.6
	}
	if cb.Timeout == 0 {
		cb.Timeout = 60 * time.Second
	}

	c := &Client{
		url:       config.URL,
		userAgent: config.UserAgent,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:    logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "V-QUEST",
		MaxRequests: cb.MaxRequests,
		Interval:    cb.Interval,
		Timeout:     cb.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cb.MinRequests && failureRatio >= cb.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker changed state")
		},
	})

	return c
}

// Post submits the form once. Connection failures and an open circuit are
// returned as *domain.VQuestError of kind KindTransport; any HTTP response,
// including non-200 ones, is returned for ParseResponse to judge.
func (c *Client) Post(ctx context.Context, form url.Values) (*Response, error) {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, &domain.VQuestError{
			Kind:     domain.KindTransport,
			Messages: []string{msgConnectionFailed},
			Err:      fmt.Errorf("rate limit wait failed: %w", err),
		}
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, form)
	})

	resp, _ := result.(*Response)
	switch {
	case err == nil, errors.Is(err, errServerStatus):
		return resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.logger.WithError(err).Error("V-QUEST circuit breaker rejected request")
		return nil, &domain.VQuestError{
			Kind:     domain.KindTransport,
			Messages: []string{msgCircuitOpen},
			Err:      err,
		}
	default:
		c.logger.WithError(err).Error("V-QUEST request failed")
		return nil, &domain.VQuestError{
			Kind:     domain.KindTransport,
			Messages: []string{msgConnectionFailed},
			Err:      err,
		}
	}
}

func (c *Client) do(ctx context.Context, form url.Values) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", c.url+".html")
	req.Header.Set("User-Agent", c.userAgent)

	started := time.Now()
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", ErrConnection, err)
	}

	resp := &Response{
		StatusCode:  httpResp.StatusCode,
		ContentType: httpResp.Header.Get("Content-Type"),
		Body:        body,
	}

	c.logger.WithFields(logrus.Fields{
		"status":       resp.StatusCode,
		"content_type": resp.ContentType,
		"bytes":        len(body),
		"duration_ms":  time.Since(started).Milliseconds(),
	}).Info("Received V-QUEST response")

	if resp.StatusCode >= http.StatusInternalServerError {
		return resp, errServerStatus
	}
	return resp, nil
}
