package audit

/*
Файл trail.go реализует асинхронный сборщик аудит-следа шлюза.

Ключевые особенности архитектуры:
- Non-blocking Logging: события из Hot Path допуска/расчета уходят через
  неблокирующий канал, задержки Postgres не влияют на Response Time.
- Batching: накопление в памяти и пакетная запись (Bulk Insert) по таймеру
  или при достижении лимита (100 событий).
- Drain Pattern: при остановке канал запирается, воркер вычитывает остатки
  и делает финальный flush — события при перезапуске не теряются.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// StorageInterface определяет, куда физически будут сохраняться события
type StorageInterface interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []AuditEvent) error
}

type Trail struct {
	ch     chan AuditEvent
	repo   StorageInterface
	logger *zap.Logger
	fill   prometheus.Gauge // Заполненность буфера (backpressure)
	wg     sync.WaitGroup

	// Защита от записи после остановки
	isClosed int32
}

func NewTrail(repo StorageInterface, logger *zap.Logger, fill prometheus.Gauge) *Trail {
	return &Trail{
		ch:     make(chan AuditEvent, 10000),
		repo:   repo,
		logger: logger.With(zap.String("mod", "audit-trail")),
		fill:   fill,
	}
}

func (t *Trail) Start() {
	t.wg.Add(1)
	go t.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (t *Trail) Stop() {
	atomic.StoreInt32(&t.isClosed, 1)

	// Крошечная пауза, чтобы текущие Log успели проскочить
	time.Sleep(10 * time.Millisecond)

	t.logger.Info("stopping audit trail: closing channel and flushing buffer...")
	close(t.ch)
	t.wg.Wait()
	t.logger.Info("audit trail stopped gracefully")
}

func (t *Trail) Log(event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if atomic.LoadInt32(&t.isClosed) == 1 {
		t.logger.Warn("audit event dropped: trail is stopping", zap.String("id", event.ID))
		return
	}

	// Load Shedding: при переполнении буфера событие уходит хотя бы в лог
	select {
	case t.ch <- event:
		if t.fill != nil {
			t.fill.Set(float64(len(t.ch)))
		}
	default:
		t.logger.Error("audit_buffer_overflow",
			zap.String("vault", string(event.Vault)),
			zap.String("trace_id", event.TraceID),
		)
	}
}

func (t *Trail) worker() {
	defer t.wg.Done()

	batch := make([]AuditEvent, 0, 100)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	flush := func() {
		if len(batch) > 0 {
			// Background: основной контекст может быть уже закрыт
			if err := t.repo.WriteBatch(context.Background(), batch); err != nil {
				t.logger.Error("audit flush failed", zap.Error(err))
			}
			batch = batch[:0]
		}
	}

	for {
		select {
		case event, ok := <-t.ch:
			if !ok {
				// Канал закрыт в Stop(): вычитали остатки, финальный сброс
				flush()
				t.logger.Info("audit worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
