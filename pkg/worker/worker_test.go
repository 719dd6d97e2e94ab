package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/internal/repository"
	"github.com/jwalitptl/clinic-queue/internal/repository/memory"
)

type stubBroker struct {
	mu     sync.Mutex
	topics []string
	calls  int
	err    error
}

func (b *stubBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.err != nil {
		return b.err
	}
	b.topics = append(b.topics, topic)
	return nil
}

func (b *stubBroker) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	return nil, nil
}

func (b *stubBroker) Close() error { return nil }

func newOutbox(t *testing.T) repository.OutboxRepository {
	t.Helper()
	repo := memory.NewStore(nil).Repositories().Outbox
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &model.OutboxEvent{EventType: model.EventClinicCalled, Payload: []byte(`{}`)}))
	require.NoError(t, repo.Create(ctx, &model.OutboxEvent{EventType: model.EventNotificationCreated, Payload: []byte(`{}`)}))
	return repo
}

func fastConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{RetryAttempts: 2, RetryDelay: time.Millisecond, MaxRetries: 2, RetryAfter: time.Millisecond}
}

func TestOutboxProcessor_PublishesPending(t *testing.T) {
	repo := newOutbox(t)
	broker := &stubBroker{}
	p := NewOutboxProcessor(repo, broker, fastConfig(), nil, nil)

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{model.EventClinicCalled, model.EventNotificationCreated}, broker.topics)

	pending, err := repo.GetPendingEventsWithLock(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOutboxProcessor_RetriesThenFails(t *testing.T) {
	repo := newOutbox(t)
	broker := &stubBroker{err: assert.AnError}
	p := NewOutboxProcessor(repo, broker, fastConfig(), nil, nil)
	ctx := context.Background()

	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 4, broker.calls)

	// Both events are due again after RetryAfter and fail for good.
	time.Sleep(5 * time.Millisecond)
	n, err = p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 8, broker.calls)

	time.Sleep(5 * time.Millisecond)
	_, err = p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, broker.calls)

	pending, err := repo.GetPendingEventsWithLock(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOutboxProcessor_ConcurrentRelaysPublishOnce(t *testing.T) {
	repo := newOutbox(t)
	broker := &stubBroker{}
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := NewOutboxProcessor(repo, broker, fastConfig(), nil, nil).ProcessBatch(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []string{model.EventClinicCalled, model.EventNotificationCreated}, broker.topics)
}

func TestOutboxCleanupWorker(t *testing.T) {
	repo := newOutbox(t)
	ctx := context.Background()
	_, err := NewOutboxProcessor(repo, &stubBroker{}, fastConfig(), nil, nil).ProcessBatch(ctx)
	require.NoError(t, err)

	w := NewOutboxCleanupWorker(repo, time.Hour, time.Minute, nil)
	rows, err := w.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, rows)

	w.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	rows, err = w.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)
}
