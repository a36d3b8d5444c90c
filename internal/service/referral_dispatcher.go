package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/SergeiKhy/paylink/internal/models"
	"github.com/SergeiKhy/paylink/internal/repository"
	"go.uber.org/zap"
)

// Константы worker pool
const (
	defaultWorkerCount   = 3    // Количество воркеров
	defaultChannelBuffer = 1000 // Размер буфера канала
	maxRetries           = 3    // Максимальное количество попыток
)

// ReferralDispatcher запускает реферальный каскад асинхронно, не блокируя
// запрос, который его вызвал.
type ReferralDispatcher interface {
	Start()
	Stop()
	Enqueue(ctx context.Context, event *models.ReferralEvent) error
	Stats() ChannelStats
}

// referralDispatcher реализация на основе Worker Pool
type referralDispatcher struct {
	cascade     ReferralCascade
	logger      *zap.Logger
	events      chan *models.ReferralEvent // Канал событий
	workerCount int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc

	mu      sync.RWMutex
	stopped bool
}

// NewReferralDispatcher создаёт новый экземпляр диспетчера
func NewReferralDispatcher(cascade ReferralCascade, logger *zap.Logger) ReferralDispatcher {
	return &referralDispatcher{
		cascade:     cascade,
		logger:      logger,
		events:      make(chan *models.ReferralEvent, defaultChannelBuffer),
		workerCount: defaultWorkerCount,
	}
}

// Start запускает worker pool
func (d *referralDispatcher) Start() {
	d.ctx, d.cancel = context.WithCancel(context.Background())

	d.logger.Info("Запуск воркеров реферального каскада", zap.Int("count", d.workerCount))

	for i := 0; i < d.workerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// Stop перестаёт принимать события, дожидается обработки очереди и останавливает воркеры
func (d *referralDispatcher) Stop() {
	d.logger.Info("Остановка реферального каскада...")

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.events)
	d.mu.Unlock()

	d.wg.Wait()
	if d.cancel != nil {
		d.cancel()
	}
	d.logger.Info("Реферальный каскад остановлен")
}

// worker обрабатывает события из канала до его закрытия
func (d *referralDispatcher) worker(id int) {
	defer d.wg.Done()

	d.logger.Debug("Воркер каскада запущен", zap.Int("id", id))

	for event := range d.events {
		d.process(event)
	}

	d.logger.Debug("Воркер каскада остановлен", zap.Int("id", id))
}

// process выполняет каскад с retry логикой. Повторяются только временные
// ошибки: дубликат и сбой начисления после создания транзакции не повторяются.
func (d *referralDispatcher) process(event *models.ReferralEvent) {
	var err error
	for i := 0; i < maxRetries; i++ {
		ctx, cancel := context.WithTimeout(d.ctx, 5*time.Second)
		_, err = d.cascade.Trigger(ctx, event)
		cancel()

		if err == nil {
			return
		}
		if errors.Is(err, repository.ErrDuplicateReferral) {
			d.logger.Info("Каскад для события уже выполнен",
				zap.String("source", event.SourceType),
				zap.Int64("source_id", event.SourceID),
			)
			return
		}
		if errors.Is(err, ErrReferralPayment) {
			break
		}

		if i < maxRetries-1 {
			d.logger.Debug("Повторная попытка реферального каскада",
				zap.String("source", event.SourceType),
				zap.Int64("source_id", event.SourceID),
				zap.Int("attempt", i+1),
				zap.Error(err),
			)
			time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
		}
	}

	d.logger.Error("Реферальный каскад завершился ошибкой",
		zap.String("source", event.SourceType),
		zap.Int64("source_id", event.SourceID),
		zap.Int64("referee_id", event.RefereeID),
		zap.Error(err),
	)
}

// Enqueue отправляет событие в worker pool (неблокирующая операция)
func (d *referralDispatcher) Enqueue(ctx context.Context, event *models.ReferralEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		d.logger.Warn("Каскад остановлен, событие потеряно",
			zap.String("source", event.SourceType),
			zap.Int64("source_id", event.SourceID),
		)
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case d.events <- event:
		return nil
	default:
		// Канал заполнен, логируем предупреждение, но не блокируем запрос
		d.logger.Warn("Буфер реферального каскада заполнен, событие потеряно",
			zap.String("source", event.SourceType),
			zap.Int64("source_id", event.SourceID),
		)
		return nil
	}
}

// Stats возвращает статистику канала для мониторинга
func (d *referralDispatcher) Stats() ChannelStats {
	return ChannelStats{
		BufferSize:  cap(d.events),
		BufferUsed:  len(d.events),
		WorkerCount: d.workerCount,
	}
}

// ChannelStats статистика канала worker pool
type ChannelStats struct {
	BufferSize  int `json:"buffer_size"`  // Общая ёмкость канала
	BufferUsed  int `json:"buffer_used"`  // Текущее использование
	WorkerCount int `json:"worker_count"` // Количество воркеров
}
