package booking

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacebook/client/internal/models"
	"github.com/spacebook/client/internal/websocket"
)

type fakeSource struct {
	mu       sync.Mutex
	reserved map[string][]models.ReservedTime
	calls    int
	err      error
}

func (s *fakeSource) ReservedTimes(ctx context.Context, spaceID int64, date string) ([]models.ReservedTime, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.reserved[date], nil
}

func (s *fakeSource) set(date string, reserved []models.ReservedTime) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reserved[date] = reserved
}

func newTestRegistry() *Registry {
	registry := NewRegistry(time.Hour)
	registry.now = func() time.Time { return time.Date(2026, 5, 10, 12, 0, 0, 0, time.Local) }
	return registry
}

func TestWatcherRefreshAppliesChanges(t *testing.T) {
	registry := newTestRegistry()
	source := &fakeSource{reserved: map[string][]models.ReservedTime{}}
	watcher := NewWatcher(registry, source, nil, time.Minute, nil)

	dated := registry.Open(testSpace)
	require.NoError(t, dated.SelectDate("2026-05-11"))
	dated.LoadReserved("2026-05-11", nil)
	require.NoError(t, dated.ChooseStart(10))
	registry.Open(testSpace) // no date, never fetched

	assert.Equal(t, 0, watcher.Refresh(context.Background()))
	assert.Equal(t, 1, source.calls)

	source.set("2026-05-11", []models.ReservedTime{{StartHour: 10, EndHour: 11}})
	assert.Equal(t, 1, watcher.Refresh(context.Background()))
	assert.Equal(t, StateUnset, dated.State())
	assert.True(t, dated.Reserved().IsReserved(10))
}

func TestWatcherSharesFetchPerSpaceAndDate(t *testing.T) {
	registry := newTestRegistry()
	source := &fakeSource{reserved: map[string][]models.ReservedTime{}}
	watcher := NewWatcher(registry, source, nil, time.Minute, nil)

	for i := 0; i < 3; i++ {
		form := registry.Open(testSpace)
		require.NoError(t, form.SelectDate("2026-05-11"))
	}

	assert.Equal(t, 3, watcher.Refresh(context.Background()))
	assert.Equal(t, 1, source.calls)
}

func TestWatcherKeepsFormsOnFetchError(t *testing.T) {
	registry := newTestRegistry()
	source := &fakeSource{reserved: map[string][]models.ReservedTime{}, err: errors.New("down")}
	watcher := NewWatcher(registry, source, nil, time.Minute, nil)

	form := registry.Open(testSpace)
	require.NoError(t, form.SelectDate("2026-05-11"))
	form.LoadReserved("2026-05-11", []models.ReservedTime{{StartHour: 9, EndHour: 10}})

	assert.Equal(t, 0, watcher.Refresh(context.Background()))
	assert.True(t, form.Reserved().IsReserved(9))
}

func TestWatcherBroadcastsAvailabilityChanged(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := websocket.NewHub(nil)
	go hub.Run(ctx)
	client := websocket.NewClient(hub)
	hub.Register(client)

	registry := newTestRegistry()
	source := &fakeSource{reserved: map[string][]models.ReservedTime{
		"2026-05-11": {{StartHour: 14, EndHour: 16}},
	}}
	watcher := NewWatcher(registry, source, hub, time.Minute, nil)

	form := registry.Open(testSpace)
	require.NoError(t, form.SelectDate("2026-05-11"))
	require.Equal(t, 1, watcher.Refresh(ctx))

	select {
	case raw := <-client.Send():
		var msg struct {
			Type    string                        `json:"type"`
			Payload websocket.AvailabilityPayload `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, string(websocket.TypeAvailabilityChanged), msg.Type)
		assert.Equal(t, form.ID(), msg.Payload.FormID)
		assert.Equal(t, int64(7), msg.Payload.SpaceID)
		assert.Equal(t, []models.ReservedTime{{StartHour: 14, EndHour: 16}}, msg.Payload.Reserved)
	case <-time.After(2 * time.Second):
		t.Fatal("no availability event received")
	}
}

func TestWatcherStartStop(t *testing.T) {
	watcher := NewWatcher(newTestRegistry(), &fakeSource{reserved: map[string][]models.ReservedTime{}}, nil, time.Second, nil)
	require.NoError(t, watcher.Start())
	watcher.Stop()
}
