// Package httpsource provides a primary data source that loads pages from
// an HTTP/JSON endpoint, with retries and error classification.
//
// A page is requested as
//
//	GET <BaseURL>?q=<query>&from=<from>&to=<to>&total=<bool>
//
// and the endpoint answers with {"items": [...], "total": N}, where total is
// optional.
package httpsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/uncover/pkg/primary"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// maxErrorBody bounds how much of an error response is kept for the message.
const maxErrorBody = 512

// HeaderObserver receives the headers of every response, retries included.
// *ratelimit.Tracker satisfies it.
type HeaderObserver interface {
	UpdateFromHeaders(ctx context.Context, headers http.Header) error
}

// Config holds the source configuration.
type Config struct {
	// BaseURL is the page endpoint, e.g. "http://localhost:8080/search".
	BaseURL string

	// UserAgent is sent with every request.
	UserAgent string

	// Timeout bounds a single attempt.
	Timeout time.Duration

	// Retry
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// HTTPClient overrides the underlying client (for testing). Timeout is
	// ignored when set.
	HTTPClient *http.Client

	// Observer, if set, sees the headers of every response.
	Observer HeaderObserver

	// Logger overrides the component logger.
	Logger *zerolog.Logger
}

// DefaultConfig returns a safe default configuration for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:      baseURL,
		UserAgent:    "uncover/1.0",
		Timeout:      30 * time.Second,
		MaxRetries:   3,
		RetryWaitMin: 1 * time.Second,
		RetryWaitMax: 30 * time.Second,
	}
}

// Source is a primary.DataSource backed by an HTTP endpoint. Items are
// decoded from JSON into T.
type Source[T any] struct {
	client   *retryablehttp.Client
	base     *url.URL
	agent    string
	observer HeaderObserver
	logger   zerolog.Logger
}

type wirePage[T any] struct {
	Items []T  `json:"items"`
	Total *int `json:"total"`
}

// New creates a source.
func New[T any](cfg Config) (*Source[T], error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}
	if cfg.RetryWaitMin < 0 || cfg.RetryWaitMax < cfg.RetryWaitMin {
		return nil, fmt.Errorf("retry wait bounds invalid (min %s, max %s)", cfg.RetryWaitMin, cfg.RetryWaitMax)
	}

	logger := log.With().Str("component", "httpsource").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	s := &Source[T]{
		base:     base,
		agent:    cfg.UserAgent,
		observer: cfg.Observer,
		logger:   logger,
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.Logger = &retryLogger{logger: logger}
	retryClient.CheckRetry = s.checkRetry
	retryClient.RequestLogHook = s.requestHook
	retryClient.ResponseLogHook = s.responseHook
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	s.client = retryClient

	return s, nil
}

// Fetch implements primary.DataSource.
func (s *Source[T]) Fetch(ctx context.Context, req primary.Request) (*primary.Response[T], error) {
	startTime := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(startTime).Seconds())
	}()

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, s.pageURL(req), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", s.agent)
	httpReq.Header.Set("Accept", "application/json")

	s.logger.Debug().
		Int("page", req.Page).
		Int("from", req.From).
		Int("to", req.To).
		Str("query", req.Query.String()).
		Msg("Requesting page")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			requestsTotal.WithLabelValues("cancelled").Inc()
			return nil, fmt.Errorf("request page %d: %w", req.Page, ctxErr)
		}
		requestsTotal.WithLabelValues("network_error").Inc()
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		s.logger.Warn().Err(err).Int("page", req.Page).Msg("Page request failed")
		return nil, &SourceError{
			Class:   ErrorClassNetwork,
			Message: "request failed",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		class := classify(resp.StatusCode, nil)
		if class == "" {
			class = ErrorClassClient
		}
		errorsTotal.WithLabelValues(string(class)).Inc()

		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		s.logger.Warn().
			Int("page", req.Page).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Page request error")

		srcErr := &SourceError{
			StatusCode: resp.StatusCode,
			Class:      class,
			Message:    resp.Status,
		}
		if len(body) > 0 {
			srcErr.Err = errors.New(string(body))
		}
		return nil, srcErr
	}

	var page wirePage[T]
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		s.logger.Warn().Err(err).Int("page", req.Page).Msg("Page response malformed")
		return nil, fmt.Errorf("%w: page %d: %v", ErrMalformedResponse, req.Page, err)
	}

	// A successful empty page is still data; only failures carry nil.
	items := page.Items
	if items == nil {
		items = []T{}
	}
	if size := req.Size(); len(items) > size {
		s.logger.Debug().
			Int("page", req.Page).
			Int("received", len(items)).
			Int("size", size).
			Msg("Truncating oversized page")
		items = items[:size]
	}

	return &primary.Response[T]{Items: items, Total: page.Total}, nil
}

// Close releases idle connections.
func (s *Source[T]) Close() error {
	s.client.HTTPClient.CloseIdleConnections()
	return nil
}

func (s *Source[T]) pageURL(req primary.Request) string {
	u := *s.base
	params := u.Query()
	params.Set("q", req.Query.String())
	params.Set("from", strconv.Itoa(req.From))
	params.Set("to", strconv.Itoa(req.To))
	params.Set("total", strconv.FormatBool(req.TotalCountRequired))
	u.RawQuery = params.Encode()
	return u.String()
}

// checkRetry retries transport errors like the default policy and status
// codes by their classification.
func (s *Source[T]) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	if resp.StatusCode < 400 {
		return false, nil
	}
	return shouldRetry(classify(resp.StatusCode, nil)), nil
}

func (s *Source[T]) requestHook(_ retryablehttp.Logger, req *http.Request, attempt int) {
	if attempt > 0 {
		retriesTotal.Inc()
		s.logger.Debug().
			Int("attempt", attempt).
			Str("url", req.URL.String()).
			Msg("Retrying page request")
	}
}

func (s *Source[T]) responseHook(_ retryablehttp.Logger, resp *http.Response) {
	if s.observer == nil {
		return
	}
	ctx := context.Background()
	if resp.Request != nil {
		ctx = resp.Request.Context()
	}
	if err := s.observer.UpdateFromHeaders(ctx, resp.Header); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
	}
}
