package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-queue/config"
	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/internal/repository/memory"
)

func memoryOpener(t *testing.T) (*Backend, Opener) {
	t.Helper()
	b := NewBackend(memory.NewStore(nil).Repositories(), nil, nil)
	return b, func(*config.Config) (*Backend, error) { return b, nil }
}

func run(t *testing.T, open Opener, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(nil)
	for _, name := range []string{"migrate", "clinic", "screen", "doctor", "call", "reset-all"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, open := memoryOpener(t)
	_, err := run(t, open, "--format", "yaml", "clinic", "list")
	assert.ErrorContains(t, err, "invalid format")
}

func TestClinicAddAndCall(t *testing.T) {
	b, open := memoryOpener(t)

	out, err := run(t, open, "clinic", "add", "--number", "1", "--name", "Dental", "--secret", "s3cret")
	require.NoError(t, err)
	assert.Contains(t, out, "Dental")

	clinics, err := b.Queue.ListClinics(context.Background())
	require.NoError(t, err)
	require.Len(t, clinics, 1)
	id := clinics[0].ID.String()

	_, err = run(t, open, "call", id, "next")
	require.NoError(t, err)
	out, err = run(t, open, "--format", "json", "call", id, "set", "12")
	require.NoError(t, err)

	var resp struct {
		Success bool            `json:"success"`
		Data    []*model.Clinic `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.True(t, resp.Success)
	assert.Equal(t, 12, resp.Data[0].CurrentNumber)
	assert.NotEmpty(t, resp.Data[0].CallToken)
}

func TestCallArguments(t *testing.T) {
	b, open := memoryOpener(t)
	c, err := b.Queue.CreateClinic(context.Background(), &model.CreateClinicRequest{SequenceNumber: 1, Name: "Eye", Secret: "pass"})
	require.NoError(t, err)

	_, err = run(t, open, "call", "not-a-uuid", "next")
	assert.ErrorContains(t, err, "invalid clinic id")

	_, err = run(t, open, "call", c.ID.String(), "jump")
	assert.ErrorContains(t, err, "unknown action")

	_, err = run(t, open, "call", c.ID.String(), "set")
	assert.ErrorContains(t, err, "set needs a number")

	_, err = run(t, open, "call", c.ID.String(), "set", "-3")
	assert.ErrorContains(t, err, "invalid number")
}

func TestResetAll(t *testing.T) {
	b, open := memoryOpener(t)
	ctx := context.Background()
	for i, name := range []string{"A", "B"} {
		_, err := b.Queue.CreateClinic(ctx, &model.CreateClinicRequest{SequenceNumber: i + 1, Name: name, Secret: "pass"})
		require.NoError(t, err)
	}
	_, err := run(t, open, "call", mustFirstID(t, b), "set", "7")
	require.NoError(t, err)

	_, err = run(t, open, "reset-all")
	require.NoError(t, err)

	clinics, err := b.Queue.ListClinics(ctx)
	require.NoError(t, err)
	for _, c := range clinics {
		assert.Equal(t, 0, c.CurrentNumber)
	}
}

func TestScreenAndDoctor(t *testing.T) {
	b, open := memoryOpener(t)

	out, err := run(t, open, "screen", "add", "--number", "1", "--name", "Lobby", "--secret", "tv")
	require.NoError(t, err)
	assert.Contains(t, out, "Lobby")

	_, err = run(t, open, "doctor", "add", "--number", "1", "--name", "Dr. Salem", "--days", "sat,sun")
	require.NoError(t, err)

	doctors, err := b.Display.ListDoctors(context.Background())
	require.NoError(t, err)
	require.Len(t, doctors, 1)
	assert.Equal(t, []string{"sat", "sun"}, []string(doctors[0].WorkingDays))
}

func TestMigrateNeedsDatabase(t *testing.T) {
	_, open := memoryOpener(t)
	_, err := run(t, open, "migrate", "up")
	assert.ErrorIs(t, err, errNoDatabase)
}

func mustFirstID(t *testing.T, b *Backend) string {
	t.Helper()
	clinics, err := b.Queue.ListClinics(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, clinics)
	return clinics[0].ID.String()
}
