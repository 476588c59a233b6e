package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dominic-g/wp-api-rate-limiter/config"
	"github.com/dominic-g/wp-api-rate-limiter/domain/entity"
	"github.com/dominic-g/wp-api-rate-limiter/domain/service"
	"github.com/dominic-g/wp-api-rate-limiter/pkg/logging"
	"github.com/dominic-g/wp-api-rate-limiter/pkg/metrics"
)

// AuditService decouples the request hot path from the audit sink: records
// are enqueued without blocking and persisted by a single writer goroutine.
// A full queue drops the record rather than stalling request handling.
type AuditService struct {
	repository service.AuditRepository
	logger     *logging.Logger
	collector  *metrics.Collector
	cfg        config.AuditConfig

	queue chan *entity.AuditRecord
	wg    sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// NewAuditService creates the asynchronous audit recorder.
func NewAuditService(repository service.AuditRepository, cfg config.AuditConfig, logger *logging.Logger, collector *metrics.Collector) *AuditService {
	return &AuditService{
		repository: repository,
		logger:     logger.WithComponent("audit_service"),
		collector:  collector,
		cfg:        cfg,
		queue:      make(chan *entity.AuditRecord, cfg.QueueSize),
		done:       make(chan struct{}),
	}
}

// Start launches the writer and the retention janitor.
func (s *AuditService) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.writeLoop()

		if s.cfg.RetentionDays > 0 && s.cfg.SweepInterval > 0 {
			s.wg.Add(1)
			go s.retentionLoop(ctx)
		}
	})
}

// Stop drains queued records and stops the background goroutines.
func (s *AuditService) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		close(s.queue)
	})
	s.wg.Wait()
}

// Record enqueues a finalized audit record. Never blocks: when the queue is
// full the record is dropped and counted.
func (s *AuditService) Record(record *entity.AuditRecord) {
	if record == nil {
		return
	}

	select {
	case s.queue <- record:
	default:
		if s.collector != nil {
			s.collector.AuditQueueDropped.Inc()
		}
		s.logger.Warn("audit queue full, dropping record",
			zap.String("ip", record.IP),
			zap.String("endpoint", record.Endpoint),
		)
	}
}

// Recent exposes the bounded, time-ordered audit read for the admin API.
func (s *AuditService) Recent(ctx context.Context, limit, offset int) ([]*entity.AuditRecord, error) {
	return s.repository.Recent(ctx, limit, offset)
}

func (s *AuditService) writeLoop() {
	defer s.wg.Done()

	for record := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
		err := s.repository.Insert(ctx, record)
		cancel()

		if err != nil {
			if s.collector != nil {
				s.collector.AuditWrites.WithLabelValues("error").Inc()
			}
			s.logger.Error("audit write failed",
				zap.String("ip", record.IP),
				zap.String("endpoint", record.Endpoint),
				zap.Error(err),
			)
			continue
		}
		if s.collector != nil {
			s.collector.AuditWrites.WithLabelValues("ok").Inc()
		}
	}
}

func (s *AuditService) retentionLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *AuditService) sweep(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -s.cfg.RetentionDays)

	sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	deleted, err := s.repository.DeleteOlderThan(sweepCtx, cutoff)
	if err != nil {
		s.logger.Error("audit retention sweep failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		s.logger.Info("audit retention sweep completed",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
}
