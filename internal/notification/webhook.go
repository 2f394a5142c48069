package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"sportclub/internal/logging"
	"sportclub/internal/metrics"
)

const breakerName = "notify-webhook"

// WebhookDispatcher POSTs each notification as JSON in the background. A
// circuit breaker stops calls to an endpoint that keeps failing.
type WebhookDispatcher struct {
	url     string
	client  *http.Client
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker[struct{}]
	wg      sync.WaitGroup
}

func NewWebhookDispatcher(url string, timeout time.Duration) *WebhookDispatcher {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &WebhookDispatcher{
		url:     url,
		client:  &http.Client{},
		timeout: timeout,
		cb:      cb,
	}
}

func (d *WebhookDispatcher) Dispatch(ctx context.Context, n Notification) {
	// The request context ends when the handler returns; keep its values only.
	bg := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.send(bg, n); err != nil {
			logging.Ctx(bg).Warn().Err(err).Str("type", n.Type).Int64("user_id", n.UserID).Msg("notification delivery failed")
		}
	}()
}

// Wait blocks until in-flight deliveries finish. Used on shutdown and in tests.
func (d *WebhookDispatcher) Wait() {
	d.wg.Wait()
}

func (d *WebhookDispatcher) send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}

	_, err = d.cb.Execute(func() (struct{}, error) {
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
		if err != nil {
			return struct{}{}, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := d.client.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return struct{}{}, fmt.Errorf("webhook returned %d", resp.StatusCode)
		}
		return struct{}{}, nil
	})

	switch {
	case err == nil:
		metrics.RecordNotification("delivered")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordNotification("rejected")
	default:
		metrics.RecordNotification("failed")
	}
	return err
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 2
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}
