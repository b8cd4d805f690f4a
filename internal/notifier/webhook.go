package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// WebhookEmitter доставляет события переходов на настроенный URL.
// Доставка асинхронная и обернута в контур надежности (Rate Limiter ->
// Circuit Breaker -> Retries): деградация приемника не касается Hot Path
// шлюза, события при переполнении буфера сбрасываются (Load Shedding).
type WebhookEmitter struct {
	url    string
	client *http.Client
	logger *zap.Logger

	ch      chan Event
	wg      sync.WaitGroup
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func NewWebhookEmitter(url string, logger *zap.Logger) *WebhookEmitter {
	// Настройка предохранителя: после 5 последовательных отказов приемника
	// перестаем долбить его на 30 секунд
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "shield-webhook",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &WebhookEmitter{
		url:     url,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger.With(zap.String("mod", "notifier")),
		ch:      make(chan Event, 1024),
		cb:      cb,
		limiter: rate.NewLimiter(rate.Limit(50), 10),
	}
}

func (w *WebhookEmitter) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.worker(ctx)
}

// Stop закрывает вход и ждет, пока воркер допишет буфер.
func (w *WebhookEmitter) Stop() {
	close(w.ch)
	w.wg.Wait()
}

// Emit неблокирующий: если буфер полон, событие теряется с записью в лог.
// Уведомления наблюдательные, ядро от них не зависит.
func (w *WebhookEmitter) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case w.ch <- event:
	default:
		w.logger.Warn("event dropped: webhook buffer overflow",
			zap.String("type", string(event.Type)),
			zap.String("vault", string(event.Vault)),
		)
	}
}

func (w *WebhookEmitter) worker(ctx context.Context) {
	defer w.wg.Done()

	for event := range w.ch {
		if err := w.deliver(ctx, event); err != nil {
			w.logger.Error("webhook delivery failed",
				zap.String("type", string(event.Type)),
				zap.String("vault", string(event.Vault)),
				zap.Error(err),
			)
		}
	}
}

func (w *WebhookEmitter) deliver(ctx context.Context, event Event) error {
	// 1. Rate Limiter
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	// 2. Circuit Breaker
	_, err := w.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(3),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Приемник сам сказал, когда вернуться (Retry-After)
				var tErr *ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}
				// Иначе стандартный экспоненциальный бэкофф
				return retry.BackOffDelay(n, err, config)
			}),
		)

		return nil, r.Do(func() error {
			return w.post(ctx, event)
		})
	})
	return err
}

func (w *WebhookEmitter) post(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	tCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(tCtx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := 2 * time.Second
		if sec, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && sec > 0 {
			retryAfter = time.Duration(sec) * time.Second
		}
		return &ThrottleError{RetryAfter: retryAfter, Cause: fmt.Errorf("webhook returned 429")}
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
