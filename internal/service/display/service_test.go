package display

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/internal/repository/memory"
	"github.com/jwalitptl/clinic-queue/pkg/errors"
	"github.com/jwalitptl/clinic-queue/pkg/feed"
	"github.com/jwalitptl/clinic-queue/pkg/security"
)

func ptr[T any](v T) *T { return &v }

func newService(t *testing.T) (*Service, *feed.Hub, *memory.Store) {
	t.Helper()
	hub := feed.NewHub(feed.Config{BufferSize: 64}, nil, nil)
	t.Cleanup(hub.Close)
	store := memory.NewStore(hub)
	repos := store.Repositories()
	return NewService(repos.DisplayConfig, repos.Screens, repos.Doctors, security.NewBcryptHasher(bcrypt.MinCost), nil), hub, store
}

func TestUpdate_PartialMerge(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	admin := model.AdminActor()

	cfg, err := svc.Update(ctx, admin, &model.DisplayConfigPatch{Columns: ptr(4)})
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Columns)

	cfg, err = svc.Update(ctx, admin, &model.DisplayConfigPatch{ThemeColor: ptr("#000000"), TickerContent: ptr("Welcome")})
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Columns)
	assert.Equal(t, "#000000", cfg.ThemeColor)
	assert.Equal(t, "Welcome", cfg.TickerContent)
	assert.Equal(t, model.DefaultDisplayConfig().CardWidth, cfg.CardWidth)
}

func TestUpdate_Rejections(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	admin := model.AdminActor()

	_, err := svc.Update(ctx, model.Actor{Role: model.RoleClinic}, &model.DisplayConfigPatch{Columns: ptr(2)})
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	_, err = svc.Update(ctx, admin, &model.DisplayConfigPatch{})
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	_, err = svc.Update(ctx, admin, &model.DisplayConfigPatch{VideoTrigger: ptr("abc")})
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	_, err = svc.Update(ctx, admin, &model.DisplayConfigPatch{LayoutSplit: ptr("5/6"), Columns: ptr(40)})
	require.True(t, errors.Is(err, errors.ErrBadRequest))
	var verr *ValidationError
	require.True(t, stderrors.As(err, &verr))
	assert.Len(t, verr.Fields, 2)

	_, err = svc.Update(ctx, admin, &model.DisplayConfigPatch{TickerContent: ptr(strings.Repeat("ع", 801))})
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
	_, err = svc.Update(ctx, admin, &model.DisplayConfigPatch{TickerContent: ptr(strings.Repeat("ع", 800))})
	assert.NoError(t, err)

	cfg, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultDisplayConfig().Columns, cfg.Columns)
}

func TestVideo_EachCommandGetsFreshTrigger(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	first, err := svc.Video(ctx, model.AdminActor(), model.VideoNext)
	require.NoError(t, err)
	second, err := svc.Video(ctx, model.AdminActor(), model.VideoNext)
	require.NoError(t, err)

	assert.NotEmpty(t, first.VideoTrigger)
	assert.NotEqual(t, first.VideoTrigger, second.VideoTrigger)
	assert.Equal(t, model.VideoNext, second.VideoCommand)

	_, err = svc.Video(ctx, model.AdminActor(), "rewind")
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}

func TestSetPlayback(t *testing.T) {
	svc, _, store := newService(t)
	ctx := context.Background()

	cfg, err := svc.SetPlayback(ctx, model.AdminActor(), &model.PlaybackRequest{Status: ptr(model.VideoPlay), Volume: ptr(80)})
	require.NoError(t, err)
	assert.Equal(t, model.VideoPlay, cfg.VideoStatus)
	assert.Equal(t, 80, cfg.VideoVolume)
	assert.False(t, cfg.VideoMuted)

	_, err = svc.SetPlayback(ctx, model.AdminActor(), &model.PlaybackRequest{})
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	store.FailWrites(assert.AnError)
	_, err = svc.SetPlayback(ctx, model.AdminActor(), &model.PlaybackRequest{Muted: ptr(true)})
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
}

func TestScreensAndDoctors(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	screen, err := svc.CreateScreen(ctx, &model.CreateScreenRequest{SequenceNumber: 1, Name: "Lobby", Secret: "4321"})
	require.NoError(t, err)
	assert.NotEqual(t, "4321", screen.Secret)

	_, err = svc.CreateScreen(ctx, &model.CreateScreenRequest{SequenceNumber: 2, Name: "Hall", Secret: "1"})
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	_, err = svc.AddDoctor(ctx, &model.CreateDoctorRequest{SequenceNumber: 2, Name: "Dr. Hana", WorkingDays: []string{"sun", "mon"}})
	require.NoError(t, err)
	_, err = svc.AddDoctor(ctx, &model.CreateDoctorRequest{SequenceNumber: 1, Name: "Dr. Adel"})
	require.NoError(t, err)

	doctors, err := svc.ListDoctors(ctx)
	require.NoError(t, err)
	require.Len(t, doctors, 2)

	require.NoError(t, svc.DeleteScreen(ctx, screen.ID))
	screens, err := svc.ListScreens(ctx)
	require.NoError(t, err)
	assert.Empty(t, screens)
}
