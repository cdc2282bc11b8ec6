package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/dal/clients/orderrecord"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderstatus"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/outbox"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/restaurantorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOutbox keeps rows by order ref, mirroring the one-row-per-order table.
type fakeOutbox struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]*outbox.SyncMessage
	now    func() time.Time
}

func newFakeOutbox(now func() time.Time) *fakeOutbox {
	return &fakeOutbox{rows: map[string]*outbox.SyncMessage{}, now: now}
}

func (f *fakeOutbox) Enqueue(
	_ context.Context,
	ref string,
	status orderstatus.Status,
	maxRetries int,
	lastError string,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[ref]
	if !ok {
		f.nextID++
		row = &outbox.SyncMessage{ID: f.nextID, OrderRef: ref, CreatedAt: f.now()}
		f.rows[ref] = row
	}
	row.Status = status
	row.RetryCount = 0
	row.MaxRetries = maxRetries
	row.LastError = lastError
	row.NextRetryAt = f.now()

	return nil
}

func (f *fakeOutbox) GetPendingMessages(_ context.Context, limit int) ([]outbox.SyncMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []outbox.SyncMessage
	for _, row := range f.rows {
		if !row.NextRetryAt.After(f.now()) && row.RetryCount < row.MaxRetries && len(out) < limit {
			out = append(out, *row)
		}
	}

	return out, nil
}

func (f *fakeOutbox) Delete(_ context.Context, id int64, status orderstatus.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ref, row := range f.rows {
		if row.ID == id && row.Status == status {
			delete(f.rows, ref)
		}
	}

	return nil
}

func (f *fakeOutbox) DeleteByOrderRef(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, ref)

	return nil
}

func (f *fakeOutbox) UpdateRetry(_ context.Context, id int64, retryCount int, lastError string, next time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ID == id {
			row.RetryCount = retryCount
			row.LastError = lastError
			row.NextRetryAt = next
		}
	}

	return nil
}

func (f *fakeOutbox) Query(context.Context, outbox.QuerySyncMessagesModel) ([]outbox.SyncMessage, error) {
	return nil, nil
}

func (f *fakeOutbox) Revive(context.Context, string) (bool, error) {
	return false, nil
}

func (f *fakeOutbox) row(ref string) *outbox.SyncMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.rows[ref]
}

type fakeOrders struct {
	unsynced []restaurantorder.Order
	cutoff   time.Time
}

func (f *fakeOrders) InsertIfAbsent(context.Context, restaurantorder.Order) (bool, error) {
	return false, nil
}

func (f *fakeOrders) Get(context.Context, string) (*restaurantorder.Order, error) {
	return nil, nil
}

func (f *fakeOrders) UpdateStatus(context.Context, string, orderstatus.Status, orderstatus.Status, time.Time) (bool, error) {
	return false, nil
}

func (f *fakeOrders) MarkSynced(context.Context, string, orderstatus.Status, time.Time) error {
	return nil
}

func (f *fakeOrders) Adopt(context.Context, string, orderstatus.Status, orderstatus.Status, time.Time) (bool, error) {
	return false, nil
}

func (f *fakeOrders) ListUnsynced(_ context.Context, olderThan time.Time, _ int) ([]restaurantorder.Order, error) {
	f.cutoff = olderThan
	out := f.unsynced
	f.unsynced = nil

	return out, nil
}

type fakePusher struct {
	mu     sync.Mutex
	err    error
	pushed []string
}

func (p *fakePusher) Push(_ context.Context, ref string, status orderstatus.Status, actor orderstatus.Actor) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushed = append(p.pushed, ref+"="+string(status)+"/"+string(actor))

	return p.err
}

// completingSyncer behaves like the service: it deletes the acknowledged row
// and, when upstream is known, settles refused rows by adopting it.
type completingSyncer struct {
	box       *fakeOutbox
	completed []string
	upstream  map[string]orderstatus.Status
	converged []string
}

func (s *completingSyncer) CompleteSync(ctx context.Context, msg outbox.SyncMessage) error {
	s.completed = append(s.completed, msg.OrderRef)

	return s.box.Delete(ctx, msg.ID, msg.Status)
}

func (s *completingSyncer) Converge(ctx context.Context, ref string) (*restaurantorder.Order, bool, error) {
	st, ok := s.upstream[ref]
	if !ok {
		return nil, false, errors.New("order-of-record unreachable")
	}
	s.converged = append(s.converged, ref)

	return &restaurantorder.Order{Ref: ref, Status: st, SyncedStatus: st}, true, s.box.DeleteByOrderRef(ctx, ref)
}

type fixture struct {
	clock  time.Time
	box    *fakeOutbox
	orders *fakeOrders
	pusher *fakePusher
	syncer *completingSyncer
	worker *Worker
}

func newFixture() *fixture {
	f := &fixture{clock: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	now := func() time.Time { return f.clock }
	f.box = newFakeOutbox(now)
	f.orders = &fakeOrders{}
	f.pusher = &fakePusher{}
	f.syncer = &completingSyncer{box: f.box}
	f.worker = NewWorker(f.box, f.orders, f.pusher, f.syncer)
	f.worker.now = now
	f.worker.maxRetries = 3
	f.worker.baseBackoff = 30 * time.Second
	f.worker.staleAfter = 2 * time.Minute

	return f
}

func TestReconcile_SuccessDeletesRowAndMarksSynced(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.box.Enqueue(context.Background(), "ORD-1", orderstatus.Accepted, 3, "timeout"))

	f.worker.Reconcile(context.Background())

	assert.Equal(t, []string{"ORD-1=accepted/restaurant"}, f.pusher.pushed)
	assert.Equal(t, []string{"ORD-1"}, f.syncer.completed)
	assert.Nil(t, f.box.row("ORD-1"))
}

func TestReconcile_FailureBacksOffExponentially(t *testing.T) {
	f := newFixture()
	f.pusher.err = &orderrecord.PushError{OrderRef: "ORD-1", Retryable: true, Err: errors.New("timeout")}
	require.NoError(t, f.box.Enqueue(context.Background(), "ORD-1", orderstatus.Ready, 3, "timeout"))

	start := f.clock
	f.worker.Reconcile(context.Background())
	row := f.box.row("ORD-1")
	require.NotNil(t, row)
	assert.Equal(t, 1, row.RetryCount)
	assert.Equal(t, start.Add(30*time.Second), row.NextRetryAt)

	// not due yet: nothing pushed
	f.worker.Reconcile(context.Background())
	assert.Len(t, f.pusher.pushed, 1)

	f.clock = row.NextRetryAt
	f.worker.Reconcile(context.Background())
	row = f.box.row("ORD-1")
	assert.Equal(t, 2, row.RetryCount)
	assert.Equal(t, f.clock.Add(60*time.Second), row.NextRetryAt)

	f.clock = row.NextRetryAt
	f.worker.Reconcile(context.Background())
	row = f.box.row("ORD-1")
	assert.Equal(t, 3, row.RetryCount)
	assert.True(t, row.Dead())

	// exhausted rows stay for inspection and are no longer drained
	f.clock = row.NextRetryAt.Add(time.Hour)
	f.worker.Reconcile(context.Background())
	assert.Len(t, f.pusher.pushed, 3)
	assert.NotNil(t, f.box.row("ORD-1"))
}

func TestReconcile_NonRetryableDeadLettersAtOnce(t *testing.T) {
	f := newFixture()
	f.pusher.err = &orderrecord.PushError{
		OrderRef:   "ORD-1",
		StatusCode: 400,
		Retryable:  false,
		Err:        errors.New("cannot change status"),
	}
	require.NoError(t, f.box.Enqueue(context.Background(), "ORD-1", orderstatus.Ready, 3, "timeout"))

	f.worker.Reconcile(context.Background())

	row := f.box.row("ORD-1")
	require.NotNil(t, row)
	assert.True(t, row.Dead())
	assert.Contains(t, row.LastError, "cannot change status")
	assert.Contains(t, row.LastError, "unreachable")
}

func TestReconcile_NonRetryableConvergesWithUpstream(t *testing.T) {
	f := newFixture()
	f.pusher.err = &orderrecord.PushError{
		OrderRef:   "ORD-1",
		StatusCode: 400,
		Err:        errors.New("cannot change status"),
	}
	f.syncer.upstream = map[string]orderstatus.Status{"ORD-1": orderstatus.Cancelled}
	require.NoError(t, f.box.Enqueue(context.Background(), "ORD-1", orderstatus.Ready, 3, "timeout"))

	f.worker.Reconcile(context.Background())

	assert.Equal(t, []string{"ORD-1"}, f.syncer.converged)
	assert.Nil(t, f.box.row("ORD-1"), "settled row leaves the outbox instead of dead-lettering")
}

func TestReconcile_BackoffIsCapped(t *testing.T) {
	f := newFixture()

	assert.Equal(t, 30*time.Second, f.worker.backoff(0))
	assert.Equal(t, 4*time.Minute, f.worker.backoff(3))
	for _, n := range []int{20, 30, 63, 64, 1000} {
		d := f.worker.backoff(n)
		assert.Positive(t, d, "retry %d", n)
		assert.Equal(t, maxBackoff, d, "retry %d", n)
	}
}

func TestReconcile_SweepQueuesDriftedOrders(t *testing.T) {
	f := newFixture()
	f.orders.unsynced = []restaurantorder.Order{
		{Ref: "ORD-7", Status: orderstatus.Preparing, SyncedStatus: orderstatus.Accepted},
	}

	f.worker.Reconcile(context.Background())

	assert.Equal(t, f.clock.Add(-2*time.Minute), f.orders.cutoff)
	assert.Equal(t, []string{"ORD-7=preparing/restaurant"}, f.pusher.pushed)
	assert.Nil(t, f.box.row("ORD-7"))
}

func TestReconcile_NewerStatusSurvivesAck(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.box.Enqueue(context.Background(), "ORD-1", orderstatus.Accepted, 3, "timeout"))
	pending, err := f.box.GetPendingMessages(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	// the restaurant moves on while the old status is in flight
	require.NoError(t, f.box.Enqueue(context.Background(), "ORD-1", orderstatus.Preparing, 3, "timeout"))
	f.worker.repush(context.Background(), pending[0])

	row := f.box.row("ORD-1")
	require.NotNil(t, row)
	assert.Equal(t, orderstatus.Preparing, row.Status)
}
