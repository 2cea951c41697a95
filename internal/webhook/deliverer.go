package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"taskhub/internal/model"
	"taskhub/pkg/circuitbreaker"
	"taskhub/pkg/metrics"
)

// Payload 投递给订阅端点的 JSON 体 {event, timestamp, data}
type Payload struct {
	Event     string          `json:"event"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Deliverer 负责向单个订阅端点投递事件：
// 有界指数退避重试，每个端点一个熔断器。
type Deliverer struct {
	client      *http.Client
	logger      *zap.Logger
	maxAttempts int
	backoffBase time.Duration
	sleep       func(context.Context, time.Duration) error

	mu       sync.Mutex
	breakers map[string]*circuitbreaker.CircuitBreaker
}

func NewDeliverer(timeout time.Duration, maxAttempts int, backoffBase time.Duration, logger *zap.Logger) *Deliverer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if backoffBase <= 0 {
		backoffBase = 1 * time.Second
	}
	return &Deliverer{
		client:      &http.Client{Timeout: timeout},
		logger:      logger,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
		sleep:       sleepCtx,
		breakers:    make(map[string]*circuitbreaker.CircuitBreaker),
	}
}

// WithSleep 替换退避等待（测试用）
func (d *Deliverer) WithSleep(sleep func(context.Context, time.Duration) error) *Deliverer {
	d.sleep = sleep
	return d
}

// Deliver attempts delivery with exponential backoff: 1s, 2s, 4s...
// up to maxAttempts. Returns the last error once the ceiling is hit.
func (d *Deliverer) Deliver(ctx context.Context, sub model.Subscription, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	breaker := d.breakerFor(sub.URL)

	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		start := time.Now()
		lastErr = breaker.Execute(func() error {
			return d.post(ctx, sub.URL, body)
		})
		if lastErr == nil {
			metrics.RecordWebhookDelivery(p.Event, "success", time.Since(start))
			d.logger.Info("Webhook delivered",
				zap.Int64("subscription_id", sub.ID),
				zap.String("url", sub.URL),
				zap.String("event", p.Event),
				zap.Int("attempt", attempt),
			)
			return nil
		}

		metrics.RecordWebhookDelivery(p.Event, "failed", time.Since(start))
		d.logger.Warn("Webhook delivery attempt failed",
			zap.Int64("subscription_id", sub.ID),
			zap.String("url", sub.URL),
			zap.String("event", p.Event),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", d.maxAttempts),
			zap.Error(lastErr),
		)

		if attempt < d.maxAttempts {
			backoff := d.backoffBase << (attempt - 1)
			if err := d.sleep(ctx, backoff); err != nil {
				return err
			}
		}
	}

	metrics.WebhookDeliveryCount.WithLabelValues(p.Event, "exhausted").Inc()
	return fmt.Errorf("delivery to %s failed after %d attempts: %w", sub.URL, d.maxAttempts, lastErr)
}

func (d *Deliverer) post(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("subscriber returned status %d", resp.StatusCode)
	}
	return nil
}

func (d *Deliverer) breakerFor(endpoint string) *circuitbreaker.CircuitBreaker {
	d.mu.Lock()
	defer d.mu.Unlock()

	cb, ok := d.breakers[endpoint]
	if !ok {
		cb = circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig())
		d.breakers[endpoint] = cb
	}
	return cb
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
