package signalgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/signal-gateway/internal/domain/model"
	"github.com/okian/signal-gateway/pkg/logger"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body.
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// getJSON decodes the envelope of a GET response. Non-2xx bodies are still
// decoded so callers can inspect them.
func getJSON[T any](ctx context.Context, c *HTTPClient, url string) (envelope[T], int, error) {
	var env envelope[T]
	resp, err := c.Get(ctx, url)
	if err != nil {
		return env, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return env, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return env, resp.StatusCode, fmt.Errorf("decode body: %w", err)
	}
	return env, resp.StatusCode, nil
}

// outcome of one POST.
type outcome int

const (
	outcomeAccepted outcome = iota
	outcomeRejected
	outcomeFailed
)

// chunk splits signals into requests of at most size signals.
func chunk(signals []model.SignalRequest, size int) [][]model.SignalRequest {
	size = max(size, 1)
	out := make([][]model.SignalRequest, 0, (len(signals)+size-1)/size)
	for start := 0; start < len(signals); start += size {
		out = append(out, signals[start:min(start+size, len(signals))])
	}
	return out
}

// submitSignals posts every signal with cfg.Workers concurrent requests.
func submitSignals(ctx context.Context, cfg *Config, signals []model.SignalRequest, stats *Stats) error {
	log := logger.Get()
	requests := chunk(signals, cfg.BatchSize)
	log.Info(ctx, "submitting signals",
		logger.Int("signals", len(signals)),
		logger.Int("requests", len(requests)),
		logger.Int("workers", cfg.Workers))

	client := newHTTPClient(cfg.Timeout)
	var accepted, rejected, failed, submitted, requestsFailed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for _, req := range requests {
		g.Go(func() error {
			res, msg := submitRequest(gctx, client, cfg.BaseURL, req)
			n := int64(len(req))
			submitted.Add(n)
			switch res {
			case outcomeAccepted:
				accepted.Add(n)
			case outcomeRejected:
				rejected.Add(n)
			case outcomeFailed:
				failed.Add(n)
				requestsFailed.Add(1)
			}
			if res != outcomeAccepted && cfg.Verbose {
				log.Warn(gctx, "request not accepted", logger.Int("signals", len(req)), logger.String("message", msg))
			}
			return gctx.Err()
		})
	}
	err := g.Wait()

	stats.SignalsSubmitted = int(submitted.Load())
	stats.SignalsAccepted = int(accepted.Load())
	stats.SignalsRejected = int(rejected.Load())
	stats.RequestsFailed = int(requestsFailed.Load())

	log.Info(ctx, "signal submission completed",
		logger.Int("accepted", stats.SignalsAccepted),
		logger.Int("rejected", stats.SignalsRejected),
		logger.Int("failed", int(failed.Load())))
	if err != nil {
		return fmt.Errorf("submission interrupted: %w", err)
	}
	return nil
}

// submitRequest posts one signal or one batch. 4xx means the gateway
// rejected the input, anything else non-2xx is a sink or transport failure.
func submitRequest(ctx context.Context, client *HTTPClient, baseURL string, req []model.SignalRequest) (outcome, string) {
	var (
		resp *http.Response
		err  error
	)
	if len(req) == 1 {
		resp, err = client.Post(ctx, baseURL+pathSignal, req[0])
	} else {
		resp, err = client.Post(ctx, baseURL+pathBatch, req)
	}
	if err != nil {
		return outcomeFailed, err.Error()
	}
	defer resp.Body.Close()

	var env envelope[json.RawMessage]
	body, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(body, &env)

	switch {
	case resp.StatusCode == http.StatusOK && env.Success:
		return outcomeAccepted, env.Message
	case resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError:
		return outcomeRejected, env.Message
	default:
		return outcomeFailed, env.Message
	}
}
