package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestDetectCall(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	base := Clinic{SequenceNumber: 2, Name: "Dental", CurrentNumber: 5, CallToken: "a", LastCalledAt: &at}
	base.ID = uuid.New()

	repeat := base
	repeat.CallToken = "b"

	paused := base
	paused.Status = ClinicStatusPaused

	empty := base
	empty.CallToken = ""

	tests := []struct {
		name string
		old  *Clinic
		new  *Clinic
		want bool
	}{
		{"insert with token", nil, &base, true},
		{"repeat keeps number but changes token", &base, &repeat, true},
		{"status change keeps token", &base, &paused, false},
		{"no token", nil, &empty, false},
		{"delete", &base, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := DetectCall(tt.old, tt.new)
			assert.Equal(t, tt.want, ok)
			if ok {
				assert.Equal(t, tt.new.CallToken, ev.CallToken)
				assert.Equal(t, 5, ev.PatientNumber)
				assert.Equal(t, 2, ev.ClinicSequence)
				assert.Equal(t, ToneDing, ev.Tone)
				assert.Equal(t, at, ev.CalledAt)
			}
		})
	}
}

func TestClinicShownOn(t *testing.T) {
	screen := uuid.New()
	other := uuid.New()

	c := Clinic{}
	assert.True(t, c.ShownOn(screen))

	c.LinkedScreenIDs = pq.StringArray{screen.String()}
	assert.True(t, c.ShownOn(screen))
	assert.False(t, c.ShownOn(other))
}

func TestNotificationValidate(t *testing.T) {
	n := &Notification{Type: NotificationNameCall}
	assert.NoError(t, n.Validate())

	n.Type = "broadcast"
	assert.Error(t, n.Validate())
}

func TestActorCanWriteClinic(t *testing.T) {
	own := uuid.New()
	console := Actor{Role: RoleClinic, ClinicID: own}

	assert.True(t, console.CanWriteClinic(own))
	assert.False(t, console.CanWriteClinic(uuid.New()))
	assert.True(t, AdminActor().CanWriteClinic(uuid.New()))
	assert.False(t, Actor{Role: RoleScreen}.CanWriteClinic(own))
}
