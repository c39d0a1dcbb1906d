package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu        sync.Mutex
	rows      map[snowflake.ID]Notification
	saveErr   error
	deleteErr error
}

func newMemStore(rows ...Notification) *memStore {
	s := &memStore{rows: make(map[snowflake.ID]Notification)}
	for _, r := range rows {
		s.rows[r.MessageID] = r
	}
	return s
}

func (s *memStore) LoadNotifications(context.Context) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	return out, nil
}

func (s *memStore) SaveNotification(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.rows[n.MessageID] = n
	return nil
}

func (s *memStore) DeleteNotification(_ context.Context, id snowflake.ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return false, s.deleteErr
	}
	_, ok := s.rows[id]
	delete(s.rows, id)
	return ok, nil
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type MockDeliverer struct {
	mock.Mock
}

func (m *MockDeliverer) Deliver(ctx context.Context, n Notification) error {
	return m.Called(ctx, n.MessageID).Error(0)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestNotifier(t *testing.T, store *memStore, d Deliverer) (*Notifier, *clock) {
	t.Helper()
	c := &clock{t: fixedNow}
	n, err := New(context.Background(), &Parser{Now: c.Now}, store, d, Config{MaxAttempts: 3})
	require.NoError(t, err)
	return n, c
}

func request(msg snowflake.ID, when string) Request {
	return Request{GuildID: 1, ChannelID: 2, UserID: 3, MessageID: msg, When: when, Note: "stretch"}
}

func TestSchedule(t *testing.T) {
	store := newMemStore()
	n, _ := newTestNotifier(t, store, new(MockDeliverer))

	rec, err := n.Schedule(context.Background(), request(10, "1h"))
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(time.Hour).Unix(), rec.NotifyAt.Unix())
	assert.Equal(t, fixedNow.Unix(), rec.CreatedAt.Unix())
	assert.Equal(t, "stretch", rec.Note)
	assert.Equal(t, 1, store.len())
	assert.Len(t, n.Pending(), 1)
}

func TestSchedule_InvalidTimePersistsNothing(t *testing.T) {
	store := newMemStore()
	n, _ := newTestNotifier(t, store, new(MockDeliverer))

	_, err := n.Schedule(context.Background(), request(10, "whenever"))
	assert.ErrorIs(t, err, ErrInvalidTimeFormat)
	assert.Zero(t, store.len())
	assert.Empty(t, n.Pending())
}

func TestSchedule_StorageFailure(t *testing.T) {
	store := newMemStore()
	store.saveErr = errors.New("disk full")
	n, _ := newTestNotifier(t, store, new(MockDeliverer))

	_, err := n.Schedule(context.Background(), request(10, "1h"))
	assert.ErrorIs(t, err, ErrStorageFailure)
	assert.Empty(t, n.Pending())
}

func TestSweep_NeverEarlyNeverTwice(t *testing.T) {
	store := newMemStore()
	d := new(MockDeliverer)
	d.On("Deliver", mock.Anything, snowflake.ID(10)).Return(nil).Once()
	n, c := newTestNotifier(t, store, d)

	_, err := n.Schedule(context.Background(), request(10, "1m"))
	require.NoError(t, err)

	report := n.Sweep(context.Background())
	assert.Zero(t, report.Delivered)

	c.Advance(59 * time.Second)
	assert.Zero(t, n.Sweep(context.Background()).Delivered)

	c.Advance(time.Second)
	assert.Equal(t, 1, n.Sweep(context.Background()).Delivered)

	c.Advance(time.Hour)
	assert.Zero(t, n.Sweep(context.Background()).Delivered)

	assert.Empty(t, n.Pending())
	assert.Zero(t, store.len())
	d.AssertExpectations(t)
	d.AssertNumberOfCalls(t, "Deliver", 1)
}

func TestSweep_ConcurrentSweepsDeliverOnce(t *testing.T) {
	store := newMemStore()
	d := new(MockDeliverer)
	d.On("Deliver", mock.Anything, mock.Anything).Return(nil)
	n, c := newTestNotifier(t, store, d)

	for i := 1; i <= 20; i++ {
		_, err := n.Schedule(context.Background(), request(snowflake.ID(i), "5s"))
		require.NoError(t, err)
	}
	c.Advance(10 * time.Second)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.Sweep(context.Background())
		}()
	}
	wg.Wait()

	d.AssertNumberOfCalls(t, "Deliver", 20)
	assert.Empty(t, n.Pending())
}

func TestSweep_RetryThenDeadLetter(t *testing.T) {
	store := newMemStore()
	d := new(MockDeliverer)
	d.On("Deliver", mock.Anything, snowflake.ID(10)).Return(errors.New("unknown channel"))
	n, c := newTestNotifier(t, store, d)

	_, err := n.Schedule(context.Background(), request(10, "1s"))
	require.NoError(t, err)
	c.Advance(time.Second)

	r := n.Sweep(context.Background())
	assert.Equal(t, 1, r.Retrying)
	require.Len(t, n.Pending(), 1)
	assert.Equal(t, 1, n.Pending()[0].Attempts)
	assert.Equal(t, 1, store.len())

	assert.Equal(t, 1, n.Sweep(context.Background()).Retrying)

	r = n.Sweep(context.Background())
	assert.Equal(t, 1, r.DeadLetters)
	assert.Empty(t, n.Pending())
	assert.Zero(t, store.len())
	d.AssertNumberOfCalls(t, "Deliver", 3)
}

func TestSweep_FailedDeliverySurvivesRestart(t *testing.T) {
	store := newMemStore()
	d := new(MockDeliverer)
	d.On("Deliver", mock.Anything, snowflake.ID(10)).Return(errors.New("discord 503")).Once()
	n, c := newTestNotifier(t, store, d)

	_, err := n.Schedule(context.Background(), request(10, "1s"))
	require.NoError(t, err)
	c.Advance(time.Second)

	store.saveErr = errors.New("database is locked")
	assert.Equal(t, 1, n.Sweep(context.Background()).Retrying)
	assert.Equal(t, 1, store.len())
	assert.Len(t, n.Pending(), 1)

	store.saveErr = nil
	d.On("Deliver", mock.Anything, snowflake.ID(10)).Return(nil).Once()
	restarted, err := New(context.Background(), &Parser{Now: c.Now}, store, d, Config{MaxAttempts: 3})
	require.NoError(t, err)
	require.Len(t, restarted.Pending(), 1)

	assert.Equal(t, 1, restarted.Sweep(context.Background()).Delivered)
	assert.Zero(t, store.len())
	d.AssertExpectations(t)
}

func TestSweep_RowKeptUntilDelivered(t *testing.T) {
	store := newMemStore()
	d := new(MockDeliverer)
	n, c := newTestNotifier(t, store, d)

	_, err := n.Schedule(context.Background(), request(10, "1s"))
	require.NoError(t, err)
	c.Advance(time.Second)

	d.On("Deliver", mock.Anything, snowflake.ID(10)).Run(func(mock.Arguments) {
		assert.Equal(t, 1, store.len(), "row must stay stored while delivering")
	}).Return(nil).Once()
	store.deleteErr = errors.New("locked")

	assert.Equal(t, 1, n.Sweep(context.Background()).Delivered)
	assert.Empty(t, n.Pending())
	assert.Equal(t, 1, store.len())
	assert.Zero(t, n.Sweep(context.Background()).Delivered)
	d.AssertNumberOfCalls(t, "Deliver", 1)
}

func TestNew_HydratesFromStore(t *testing.T) {
	store := newMemStore(
		Notification{MessageID: 1, UserID: 3, NotifyAt: fixedNow.Add(-time.Minute)},
		Notification{MessageID: 2, UserID: 4, NotifyAt: fixedNow.Add(time.Hour)},
	)
	d := new(MockDeliverer)
	d.On("Deliver", mock.Anything, snowflake.ID(1)).Return(nil)
	n, _ := newTestNotifier(t, store, d)

	assert.Len(t, n.Pending(), 2)
	assert.Len(t, n.PendingFor(4), 1)

	assert.Equal(t, 1, n.Sweep(context.Background()).Delivered)
	assert.Len(t, n.Pending(), 1)
}

func TestCancel(t *testing.T) {
	store := newMemStore()
	n, _ := newTestNotifier(t, store, new(MockDeliverer))

	_, err := n.Schedule(context.Background(), request(10, "1h"))
	require.NoError(t, err)

	assert.ErrorIs(t, n.Cancel(context.Background(), 99, 10), ErrNotFound)
	assert.ErrorIs(t, n.Cancel(context.Background(), 3, 11), ErrNotFound)

	require.NoError(t, n.Cancel(context.Background(), 3, 10))
	assert.Empty(t, n.Pending())
	assert.Zero(t, store.len())
}

func TestRun_StopsOnCancel(t *testing.T) {
	n, _ := newTestNotifier(t, newMemStore(), new(MockDeliverer))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		n.Run(ctx, 5*time.Millisecond)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
