package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// httpJSON performs GET requests through a circuit breaker so an unreachable
// provider is skipped quickly instead of slowing every prefetch.
type httpJSON struct {
	client    *http.Client
	cb        *gobreaker.CircuitBreaker
	userAgent string
}

func newHTTPJSON(name string, client *http.Client, userAgent string, log *zap.Logger) *httpJSON {
	if client == nil {
		client = &http.Client{Timeout: 8 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("provider breaker state",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &httpJSON{client: client, cb: cb, userAgent: userAgent}
}

func (h *httpJSON) get(ctx context.Context, url string, out any) error {
	_, err := h.cb.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if h.userAgent != "" {
			req.Header.Set("User-Agent", h.userAgent)
		}
		resp, err := h.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil, fmt.Errorf("%s: status %d", h.cb.Name(), resp.StatusCode)
		}
		return nil, json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out)
	})
	return err
}
