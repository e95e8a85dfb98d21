package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditmodels "careledger/internal/audit/models"
	"careledger/internal/notices/outbox"
	"careledger/internal/notices/outbox/metrics"
	outboxmemory "careledger/internal/notices/outbox/store/memory"
	"careledger/internal/platform/kafka/producer"
	registrymodels "careledger/internal/registry/models"
	id "careledger/pkg/domain"
)

type fakePublisher struct {
	mu       sync.Mutex
	messages []*producer.Message
	err      error
}

func (p *fakePublisher) Produce(ctx context.Context, msg *producer.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *fakePublisher) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *fakePublisher) sent() []*producer.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*producer.Message(nil), p.messages...)
}

func newSuspendEntry(t *testing.T, code string) *outbox.Entry {
	t.Helper()
	rec, err := auditmodels.NewRegistryAction(
		id.KindCaregiver, uuid.New(), id.RegistryCode(code),
		registrymodels.ActionSuspend, "compliant", "suspended",
		"pending investigation", "admin-01", time.Now().UTC(),
	)
	require.NoError(t, err)
	entry, err := outbox.NewEntryFromAction(rec)
	require.NoError(t, err)
	return entry
}

func TestPollPublishesAndMarksProcessed(t *testing.T) {
	store := outboxmemory.New()
	pub := &fakePublisher{}
	ctx := context.Background()

	first := newSuspendEntry(t, "NIC-MEM-5502")
	second := newSuspendEntry(t, "NIC-MEM-0042")
	require.NoError(t, store.Append(ctx, first))
	require.NoError(t, store.Append(ctx, second))

	w := New(store, pub, WithTopic("careledger.registry.notices.test"))
	w.poll()

	msgs := pub.sent()
	require.Len(t, msgs, 2)
	assert.Equal(t, "careledger.registry.notices.test", msgs[0].Topic)
	assert.Equal(t, first.ID.String(), string(msgs[0].Key))
	assert.Equal(t, "registrant_suspended", msgs[0].Headers["notice_type"])

	pending, err := store.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestPollLeavesFailedEntriesPending(t *testing.T) {
	store := outboxmemory.New()
	pub := &fakePublisher{}
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, newSuspendEntry(t, "NIC-MEM-5502")))

	pub.setErr(errors.New("broker unavailable"))
	w := New(store, pub)
	w.poll()

	pending, err := store.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)

	// The next poll picks the entry up again once the broker recovers.
	pub.setErr(nil)
	w.poll()

	pending, err = store.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Len(t, pub.sent(), 1)
}

func TestMaintainRefreshesGaugeAndPrunes(t *testing.T) {
	store := outboxmemory.New()
	pub := &fakePublisher{}
	ctx := context.Background()
	m := metrics.New()

	old := newSuspendEntry(t, "NIC-MEM-5502")
	require.NoError(t, store.Append(ctx, old))
	require.NoError(t, store.MarkProcessed(ctx, old.ID, time.Now().Add(-48*time.Hour)))
	require.NoError(t, store.Append(ctx, newSuspendEntry(t, "NIC-MEM-0042")))

	w := New(store, pub, WithMetrics(m), WithRetention(24*time.Hour))
	w.maintain()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.PendingDepth))

	// The processed entry is past retention and already pruned.
	removed, err := store.DeleteProcessedBefore(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, removed)

	pending, err := store.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
}
