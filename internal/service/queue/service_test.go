package queue

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/internal/repository"
	"github.com/jwalitptl/clinic-queue/internal/repository/memory"
	"github.com/jwalitptl/clinic-queue/pkg/edge"
	"github.com/jwalitptl/clinic-queue/pkg/errors"
	"github.com/jwalitptl/clinic-queue/pkg/feed"
	"github.com/jwalitptl/clinic-queue/pkg/security"
)

type fixture struct {
	hub    *feed.Hub
	store  *memory.Store
	repos  repository.Store
	svc    *Service
	clinic *model.Clinic
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	hub := feed.NewHub(feed.Config{BufferSize: 64}, nil, nil)
	t.Cleanup(hub.Close)
	store := memory.NewStore(hub)
	repos := store.Repositories()
	svc := NewService(repos.Clinics, repos.Outbox, security.NewBcryptHasher(bcrypt.MinCost), cfg, nil, nil)

	clinic, err := svc.CreateClinic(context.Background(), &model.CreateClinicRequest{SequenceNumber: 3, Name: "Dental", Secret: "1234"})
	require.NoError(t, err)
	return &fixture{hub: hub, store: store, repos: repos, svc: svc, clinic: clinic}
}

func (f *fixture) console() model.Actor {
	return model.Actor{Role: model.RoleClinic, ClinicID: f.clinic.ID, Label: f.clinic.Name}
}

// calls drains the clinic feed the way a display does: decode, detect a
// new token, dedupe.
func calls(t *testing.T, sub *feed.Subscription, det *edge.Detector) []model.CallEvent {
	t.Helper()
	var out []model.CallEvent
	for {
		select {
		case ev := <-sub.Events():
			if ev.Type.IsControl() {
				continue
			}
			change, err := feed.Decode[model.Clinic](ev)
			require.NoError(t, err)
			call, ok := model.DetectCall(change.Old, change.New)
			if ok && det.Observe(ev.EntityID, call.CallToken) {
				out = append(out, call)
			}
		case <-time.After(50 * time.Millisecond):
			return out
		}
	}
}

func TestCall_EachActionYieldsOneCallInOrder(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	sub, err := f.hub.Subscribe(model.CollectionClinics, feed.ByEntity(f.clinic.ID.String()))
	require.NoError(t, err)
	defer sub.Cancel()

	cmds := []Command{
		{Action: ActionNext},
		{Action: ActionRepeat},
		{Action: ActionRepeat},
		{Action: ActionSet, Number: 9},
		{Action: ActionSet, Number: 9},
		{Action: ActionReset},
	}
	for _, cmd := range cmds {
		_, err := f.svc.Call(ctx, f.console(), f.clinic.ID, cmd)
		require.NoError(t, err)
	}

	got := calls(t, sub, edge.NewDetector(time.Minute))
	require.Len(t, got, len(cmds))

	numbers := make([]int, 0, len(got))
	tokens := map[string]bool{}
	for _, c := range got {
		numbers = append(numbers, c.PatientNumber)
		tokens[c.CallToken] = true
		assert.Equal(t, 3, c.ClinicSequence)
	}
	assert.Equal(t, []int{1, 1, 1, 9, 9, 0}, numbers)
	assert.Len(t, tokens, len(cmds), "every action must carry a distinct token")
}

func TestCall_RedeliveredEventDoesNotRetrigger(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	sub, err := f.hub.Subscribe(model.CollectionClinics, nil)
	require.NoError(t, err)
	defer sub.Cancel()

	_, err = f.svc.Call(ctx, f.console(), f.clinic.ID, Command{Action: ActionNext})
	require.NoError(t, err)

	ev := <-sub.Events()
	f.hub.Publish(ev)
	f.hub.Publish(ev)

	det := edge.NewDetector(time.Minute)
	change, err := feed.Decode[model.Clinic](ev)
	require.NoError(t, err)
	call, ok := model.DetectCall(change.Old, change.New)
	require.True(t, ok)
	assert.True(t, det.Observe(ev.EntityID, call.CallToken))
	assert.Empty(t, calls(t, sub, det))
}

func TestCall_Authorization(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	other := model.Actor{Role: model.RoleClinic, ClinicID: uuid.New(), Label: "Eye"}
	_, err := f.svc.Call(ctx, other, f.clinic.ID, Command{Action: ActionNext})
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	screen := model.Actor{Role: model.RoleScreen}
	_, err = f.svc.Call(ctx, screen, f.clinic.ID, Command{Action: ActionNext})
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	updated, err := f.svc.Call(ctx, model.AdminActor(), f.clinic.ID, Command{Action: ActionSet, Number: 7})
	require.NoError(t, err)
	assert.Equal(t, 7, updated.CurrentNumber)
}

func TestCall_WriteFailureProducesNoCall(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	sub, err := f.hub.Subscribe(model.CollectionClinics, nil)
	require.NoError(t, err)
	defer sub.Cancel()

	f.store.FailWrites(stderrors.New("network down"))
	_, err = f.svc.Call(ctx, f.console(), f.clinic.ID, Command{Action: ActionNext})
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
	assert.Empty(t, calls(t, sub, edge.NewDetector(time.Minute)))

	f.store.FailWrites(nil)
	stored, err := f.repos.Clinics.Get(ctx, f.clinic.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.CurrentNumber)

	pending, err := f.repos.Outbox.GetPendingEventsWithLock(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCall_RecordsOutboxEvent(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	_, err := f.svc.Call(ctx, f.console(), f.clinic.ID, Command{Action: ActionNext})
	require.NoError(t, err)

	pending, err := f.repos.Outbox.GetPendingEventsWithLock(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.EventClinicCalled, pending[0].EventType)
	assert.Contains(t, string(pending[0].Payload), `"action":"next"`)
}

func TestCall_OptimisticLocking(t *testing.T) {
	f := newFixture(t, Config{OptimisticLocking: true})
	ctx := context.Background()

	_, err := f.svc.Call(ctx, f.console(), f.clinic.ID, Command{Action: ActionNext})
	require.NoError(t, err)

	_, err = f.svc.Call(ctx, model.AdminActor(), f.clinic.ID, Command{Action: ActionNext, ExpectedVersion: 1})
	assert.True(t, errors.Is(err, errors.ErrConflict))
	assert.ErrorIs(t, err, repository.ErrVersionConflict)
}

func TestSetStatus_KeepsToken(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	called, err := f.svc.Call(ctx, f.console(), f.clinic.ID, Command{Action: ActionNext})
	require.NoError(t, err)

	paused, err := f.svc.SetStatus(ctx, f.console(), f.clinic.ID, model.ClinicStatusPaused)
	require.NoError(t, err)
	assert.Equal(t, model.ClinicStatusPaused, paused.Status)
	assert.Equal(t, called.CallToken, paused.CallToken)
	assert.Equal(t, 1, paused.CurrentNumber)

	_, err = f.svc.SetStatus(ctx, f.console(), f.clinic.ID, "closed")
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}

func TestResetAll(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	second, err := f.svc.CreateClinic(ctx, &model.CreateClinicRequest{SequenceNumber: 4, Name: "Eye", Secret: "5678"})
	require.NoError(t, err)
	for _, id := range []uuid.UUID{f.clinic.ID, second.ID} {
		_, err := f.svc.Call(ctx, model.AdminActor(), id, Command{Action: ActionSet, Number: 12})
		require.NoError(t, err)
	}

	_, err = f.svc.ResetAll(ctx, f.console())
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	reset, err := f.svc.ResetAll(ctx, model.AdminActor())
	require.NoError(t, err)
	require.Len(t, reset, 2)
	for _, c := range reset {
		assert.Equal(t, 0, c.CurrentNumber)
	}
	assert.NotEqual(t, reset[0].CallToken, reset[1].CallToken)
}

func TestCreateClinic_HashesSecret(t *testing.T) {
	f := newFixture(t, Config{})
	stored, err := f.repos.Clinics.Get(context.Background(), f.clinic.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "1234", stored.OperatorSecret)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.OperatorSecret), []byte("1234")))
}
