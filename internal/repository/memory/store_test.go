package memory

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/internal/repository"
	"github.com/jwalitptl/clinic-queue/pkg/errors"
)

type recorder struct {
	mu     sync.Mutex
	events []model.ChangeEvent
}

func (r *recorder) Publish(ev model.ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) last() model.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func ptr[T any](v T) *T { return &v }

func TestClinicRepository_UpdateEmitsPatch(t *testing.T) {
	rec := &recorder{}
	repos := NewStore(rec).Repositories()
	ctx := context.Background()

	clinic := &model.Clinic{SequenceNumber: 1, Name: "Dental", OperatorSecret: "hash"}
	require.NoError(t, repos.Clinics.Create(ctx, clinic))
	assert.Equal(t, model.ChangeInsert, rec.last().Type)
	assert.NotContains(t, string(rec.last().New), "hash")

	updated, err := repos.Clinics.Update(ctx, clinic.ID, &model.ClinicPatch{CurrentNumber: ptr(7), CallToken: ptr("tok")}, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, updated.CurrentNumber)
	assert.Equal(t, "Dental", updated.Name)
	assert.Equal(t, int64(2), updated.Version)

	ev := rec.last()
	assert.Equal(t, model.ChangeUpdate, ev.Type)
	assert.Equal(t, clinic.ID.String(), ev.EntityID)

	var p map[string]interface{}
	require.NoError(t, json.Unmarshal(ev.Patch, &p))
	assert.Len(t, p, 2)
	assert.Equal(t, "tok", p["call_token"])
}

func TestClinicRepository_VersionCheck(t *testing.T) {
	repos := NewStore(nil).Repositories()
	ctx := context.Background()

	clinic := &model.Clinic{SequenceNumber: 1, Name: "Dental"}
	require.NoError(t, repos.Clinics.Create(ctx, clinic))

	_, err := repos.Clinics.Update(ctx, clinic.ID, &model.ClinicPatch{CurrentNumber: ptr(1)}, 1)
	require.NoError(t, err)

	_, err = repos.Clinics.Update(ctx, clinic.ID, &model.ClinicPatch{CurrentNumber: ptr(2)}, 1)
	assert.True(t, errors.Is(err, errors.ErrConflict))
	assert.ErrorIs(t, err, repository.ErrVersionConflict)

	_, err = repos.Clinics.Update(ctx, uuid.New(), &model.ClinicPatch{}, 0)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestClinicRepository_ListOrderedBySequence(t *testing.T) {
	repos := NewStore(nil).Repositories()
	ctx := context.Background()

	for _, seq := range []int{3, 1, 2} {
		require.NoError(t, repos.Clinics.Create(ctx, &model.Clinic{SequenceNumber: seq}))
	}
	assert.Error(t, repos.Clinics.Create(ctx, &model.Clinic{SequenceNumber: 2}))

	list, err := repos.Clinics.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{list[0].SequenceNumber, list[1].SequenceNumber, list[2].SequenceNumber})
}

func TestStore_FailWrites(t *testing.T) {
	rec := &recorder{}
	store := NewStore(rec)
	repos := store.Repositories()
	ctx := context.Background()

	clinic := &model.Clinic{SequenceNumber: 1}
	require.NoError(t, repos.Clinics.Create(ctx, clinic))
	before := len(rec.events)

	store.FailWrites(stderrors.New("connection reset"))
	_, err := repos.Clinics.Update(ctx, clinic.ID, &model.ClinicPatch{CurrentNumber: ptr(1)}, 0)
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
	assert.Len(t, rec.events, before, "failed write must not emit")

	got, err := repos.Clinics.Get(ctx, clinic.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentNumber)
}

func TestNotificationRepository_Queries(t *testing.T) {
	repos := NewStore(nil).Repositories()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	items := []*model.Notification{
		{FromLabel: "Dental", ToClinicID: &b, Type: model.NotificationNormal, Message: "1"},
		{FromLabel: "Dental", Type: model.NotificationEmergency, Message: "2"},
		{FromLabel: "admin", ToClinicID: &a, Type: model.NotificationNormal, Message: "3"},
		{FromLabel: "Eye", ToClinicID: &a, ToAdmin: true, Type: model.NotificationTransfer, Message: "4"},
	}
	for _, n := range items {
		require.NoError(t, repos.Notifications.Create(ctx, n))
	}

	inbound, err := repos.Notifications.ListInbound(ctx, a, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "3", "2"}, messages(inbound))

	admin, err := repos.Notifications.ListAdmin(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "2"}, messages(admin))

	outbound, err := repos.Notifications.ListOutbound(ctx, "Dental", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, messages(outbound))
}

func TestDisplayConfigRepository_PartialMerge(t *testing.T) {
	rec := &recorder{}
	repos := NewStore(rec).Repositories()
	ctx := context.Background()

	_, err := repos.DisplayConfig.Update(ctx, &model.DisplayConfigPatch{Columns: ptr(5), CardHeight: ptr(40)})
	require.NoError(t, err)

	cfg, err := repos.DisplayConfig.Update(ctx, &model.DisplayConfigPatch{FontScale: ptr(4.0)})
	require.NoError(t, err)
	assert.Equal(t, 4.0, cfg.FontScale)
	assert.Equal(t, 5, cfg.Columns)
	assert.Equal(t, 40, cfg.CardHeight)
	assert.JSONEq(t, `{"font_scale":4}`, string(rec.last().Patch))
}

func TestOutboxRepository_Lifecycle(t *testing.T) {
	repos := NewStore(nil).Repositories()
	ctx := context.Background()

	ev := &model.OutboxEvent{EventType: model.EventClinicCalled, Payload: json.RawMessage(`{}`)}
	require.NoError(t, repos.Outbox.Create(ctx, ev))

	pending, err := repos.Outbox.GetPendingEventsWithLock(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, repos.Outbox.UpdateStatus(ctx, ev.ID, model.OutboxStatusProcessed, nil, nil))
	pending, err = repos.Outbox.GetPendingEventsWithLock(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOutboxRepository_ClaimIsExclusiveUntilLeaseExpires(t *testing.T) {
	store := NewStore(nil)
	repos := store.Repositories()
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return start }

	ev := &model.OutboxEvent{EventType: model.EventClinicCalled, Payload: json.RawMessage(`{}`)}
	require.NoError(t, repos.Outbox.Create(ctx, ev))

	claimed, err := repos.Outbox.GetPendingEventsWithLock(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, model.OutboxStatusProcessing, claimed[0].Status)

	again, err := repos.Outbox.GetPendingEventsWithLock(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	store.now = func() time.Time { return start.Add(model.OutboxClaimLease + time.Second) }
	abandoned, err := repos.Outbox.GetPendingEventsWithLock(ctx, 10)
	require.NoError(t, err)
	require.Len(t, abandoned, 1)
	assert.Equal(t, ev.ID, abandoned[0].ID)
}

func messages(ns []*model.Notification) []string {
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Message)
	}
	return out
}
