package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominic-g/wp-api-rate-limiter/config"
	"github.com/dominic-g/wp-api-rate-limiter/domain/entity"
	"github.com/dominic-g/wp-api-rate-limiter/pkg/logging"
)

// fakeAuditRepository captures inserted records in memory.
type fakeAuditRepository struct {
	mu       sync.Mutex
	inserted []*entity.AuditRecord
	block    chan struct{}
	deleted  int64
	cutoffs  []time.Time
}

func newFakeAuditRepository() *fakeAuditRepository {
	return &fakeAuditRepository{}
}

func (r *fakeAuditRepository) Insert(_ context.Context, record *entity.AuditRecord) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserted = append(r.inserted, record)
	return nil
}

func (r *fakeAuditRepository) Recent(_ context.Context, limit, offset int) ([]*entity.AuditRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if offset >= len(r.inserted) {
		return nil, nil
	}
	end := offset + limit
	if end > len(r.inserted) {
		end = len(r.inserted)
	}
	return r.inserted[offset:end], nil
}

func (r *fakeAuditRepository) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cutoffs = append(r.cutoffs, cutoff)
	return r.deleted, nil
}

func (r *fakeAuditRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inserted)
}

func testAuditConfig(queueSize int) config.AuditConfig {
	return config.AuditConfig{
		QueueSize:     queueSize,
		WriteTimeout:  time.Second,
		RetentionDays: 90,
		SweepInterval: time.Hour,
	}
}

func auditRecordFor(ip string) *entity.AuditRecord {
	record := entity.NewAuditRecord(ip, "GET", "/wp-json/wp/v2/posts", nil, time.Now().UTC())
	record.Finalize(200, 12, 345, false)
	return record
}

func TestAuditService_RecordsArePersistedInOrder(t *testing.T) {
	repo := newFakeAuditRepository()
	svc := NewAuditService(repo, testAuditConfig(16), logging.NewNopLogger(), nil)
	svc.Start(context.Background())

	svc.Record(auditRecordFor("203.0.113.1"))
	svc.Record(auditRecordFor("203.0.113.2"))
	svc.Stop()

	require.Equal(t, 2, repo.count())
	assert.Equal(t, "203.0.113.1", repo.inserted[0].IP)
	assert.Equal(t, "203.0.113.2", repo.inserted[1].IP)
}

func TestAuditService_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	repo := newFakeAuditRepository()
	repo.block = make(chan struct{})
	svc := NewAuditService(repo, testAuditConfig(1), logging.NewNopLogger(), nil)
	svc.Start(context.Background())

	// First record is picked up by the writer and parks on the blocked
	// insert, the second fills the queue, the third must be dropped.
	svc.Record(auditRecordFor("203.0.113.1"))

	require.Eventually(t, func() bool {
		return len(svc.queue) == 0
	}, time.Second, 5*time.Millisecond)

	svc.Record(auditRecordFor("203.0.113.2"))

	done := make(chan struct{})
	go func() {
		svc.Record(auditRecordFor("203.0.113.3"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full queue")
	}

	close(repo.block)
	svc.Stop()

	assert.Equal(t, 2, repo.count(), "the overflow record was dropped")
}

func TestAuditService_StopDrainsQueuedRecords(t *testing.T) {
	repo := newFakeAuditRepository()
	svc := NewAuditService(repo, testAuditConfig(64), logging.NewNopLogger(), nil)
	svc.Start(context.Background())

	for i := 0; i < 50; i++ {
		svc.Record(auditRecordFor("203.0.113.9"))
	}
	svc.Stop()

	assert.Equal(t, 50, repo.count(), "Stop waits for the writer to drain")
}

func TestAuditService_NilRecordIgnored(t *testing.T) {
	repo := newFakeAuditRepository()
	svc := NewAuditService(repo, testAuditConfig(4), logging.NewNopLogger(), nil)
	svc.Start(context.Background())

	svc.Record(nil)
	svc.Stop()

	assert.Equal(t, 0, repo.count())
}

func TestAuditService_RecentPassesThrough(t *testing.T) {
	repo := newFakeAuditRepository()
	svc := NewAuditService(repo, testAuditConfig(8), logging.NewNopLogger(), nil)
	svc.Start(context.Background())

	for _, ip := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
		svc.Record(auditRecordFor(ip))
	}
	svc.Stop()

	page, err := svc.Recent(context.Background(), 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "203.0.113.2", page[0].IP)
}

func TestAuditService_SweepUsesRetentionCutoff(t *testing.T) {
	repo := newFakeAuditRepository()
	repo.deleted = 7
	svc := NewAuditService(repo, testAuditConfig(4), logging.NewNopLogger(), nil)

	svc.sweep(context.Background())

	require.Len(t, repo.cutoffs, 1)
	expected := time.Now().AddDate(0, 0, -90)
	assert.WithinDuration(t, expected, repo.cutoffs[0], time.Minute)
}
