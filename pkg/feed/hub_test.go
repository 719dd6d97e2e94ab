package feed

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-queue/internal/model"
)

func newTestHub(buffer int) *Hub {
	return NewHub(Config{BufferSize: buffer, HeartbeatInterval: 10 * time.Millisecond}, nil, nil)
}

func clinicEvent(id string, n int) model.ChangeEvent {
	raw, _ := json.Marshal(map[string]interface{}{"id": id, "current_number": n})
	return model.ChangeEvent{Collection: model.CollectionClinics, Type: model.ChangeUpdate, EntityID: id, New: raw}
}

func recv(t *testing.T, sub *Subscription) model.ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return model.ChangeEvent{}
	}
}

func TestHub_FiltersByCollectionAndPredicate(t *testing.T) {
	hub := newTestHub(8)
	defer hub.Close()

	one, err := hub.Subscribe(model.CollectionClinics, ByEntity("c1"))
	require.NoError(t, err)
	all, err := hub.Subscribe(model.CollectionClinics, nil)
	require.NoError(t, err)
	notes, err := hub.Subscribe(model.CollectionNotifications, nil)
	require.NoError(t, err)

	hub.Publish(clinicEvent("c2", 1))
	hub.Publish(clinicEvent("c1", 2))

	assert.Equal(t, "c1", recv(t, one).EntityID)
	assert.Equal(t, "c2", recv(t, all).EntityID)
	assert.Equal(t, "c1", recv(t, all).EntityID)
	assert.Len(t, notes.Events(), 0)
}

func TestHub_PreservesPublishOrderPerEntity(t *testing.T) {
	hub := newTestHub(16)
	defer hub.Close()

	sub, err := hub.Subscribe(model.CollectionClinics, nil)
	require.NoError(t, err)

	for n := 1; n <= 10; n++ {
		hub.Publish(clinicEvent("c1", n))
	}
	var last uint64
	for n := 1; n <= 10; n++ {
		ev := recv(t, sub)
		assert.Greater(t, ev.Seq, last)
		last = ev.Seq
	}
}

func TestHub_CancelReleasesSubscription(t *testing.T) {
	hub := newTestHub(4)
	defer hub.Close()

	sub, err := hub.Subscribe(model.CollectionClinics, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, hub.Len())

	sub.Cancel()
	sub.Cancel()
	assert.Equal(t, 0, hub.Len())

	_, ok := <-sub.Events()
	assert.False(t, ok, "channel must be closed after cancel")

	hub.Publish(clinicEvent("c1", 1))
}

func TestHub_LaggedSubscriberGetsResync(t *testing.T) {
	hub := newTestHub(2)
	defer hub.Close()

	sub, err := hub.Subscribe(model.CollectionClinics, nil)
	require.NoError(t, err)

	hub.Publish(clinicEvent("c1", 1))
	hub.Publish(clinicEvent("c1", 2))
	hub.Publish(clinicEvent("c1", 3))
	assert.Equal(t, uint64(1), sub.Dropped())

	recv(t, sub)
	recv(t, sub)

	hub.Publish(clinicEvent("c1", 4))
	marker := recv(t, sub)
	assert.Equal(t, model.ChangeResync, marker.Type)
	assert.Equal(t, ResyncLagged, marker.Reason)

	next := recv(t, sub)
	assert.Equal(t, model.ChangeUpdate, next.Type)
}

func TestHub_ControlEventsReachEverySubscriber(t *testing.T) {
	hub := newTestHub(4)
	defer hub.Close()

	filtered, err := hub.Subscribe(model.CollectionClinics, func(model.ChangeEvent) bool { return false })
	require.NoError(t, err)

	hub.Resync(ResyncReconnect)
	ev := recv(t, filtered)
	assert.Equal(t, model.ChangeResync, ev.Type)
	assert.Equal(t, ResyncReconnect, ev.Reason)

	hub.Heartbeat()
	assert.Equal(t, model.ChangeHeartbeat, recv(t, filtered).Type)
}

func TestHub_RunEmitsHeartbeats(t *testing.T) {
	hub := newTestHub(4)
	defer hub.Close()

	sub, err := hub.Subscribe("", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	assert.Equal(t, model.ChangeHeartbeat, recv(t, sub).Type)
}

func TestHub_Close(t *testing.T) {
	hub := newTestHub(4)
	sub, err := hub.Subscribe(model.CollectionClinics, nil)
	require.NoError(t, err)

	hub.Close()
	_, ok := <-sub.Events()
	assert.False(t, ok)
	sub.Cancel()

	_, err = hub.Subscribe(model.CollectionClinics, nil)
	assert.ErrorIs(t, err, ErrClosed)
	hub.Publish(clinicEvent("c1", 1))
}

func TestWatchdog(t *testing.T) {
	w := NewWatchdog(30 * time.Millisecond)
	defer w.Stop()

	for i := 0; i < 3; i++ {
		time.Sleep(10 * time.Millisecond)
		w.Kick()
	}
	select {
	case <-w.C():
		t.Fatal("watchdog fired despite kicks")
	default:
	}

	select {
	case <-w.C():
	case <-time.After(time.Second):
		t.Fatal("watchdog never fired")
	}
}
