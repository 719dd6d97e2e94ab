package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Collection string

const (
	CollectionClinics       Collection = "clinics"
	CollectionNotifications Collection = "notifications"
	CollectionDisplayConfig Collection = "display_config"
	CollectionScreens       Collection = "screens"
	CollectionDoctors       Collection = "doctors"
)

type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
	// Control events carry no collection and reach every subscription.
	ChangeHeartbeat ChangeType = "HEARTBEAT"
	ChangeResync    ChangeType = "RESYNC"
)

// IsControl reports whether the type is a feed control marker.
func (t ChangeType) IsControl() bool {
	return t == ChangeHeartbeat || t == ChangeResync
}

// ChangeEvent is one committed mutation as seen by subscribers. Old is nil
// for inserts, New is nil for deletes. Patch holds only the fields an
// update carried.
type ChangeEvent struct {
	Seq        uint64          `json:"seq"`
	Collection Collection      `json:"collection,omitempty"`
	Type       ChangeType      `json:"type"`
	EntityID   string          `json:"entity_id,omitempty"`
	Old        json.RawMessage `json:"old,omitempty"`
	New        json.RawMessage `json:"new,omitempty"`
	Patch      json.RawMessage `json:"patch,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	At         time.Time       `json:"at"`
}

// Tone ids understood by the announcement sequencer.
const (
	ToneDing      = "ding"
	ToneEmergency = "emergency"
	ToneRing      = "ring"
)

// CallEvent signals that a clinic called (or re-called) a number.
type CallEvent struct {
	ClinicID       uuid.UUID `json:"clinic_id"`
	ClinicName     string    `json:"clinic_name"`
	ClinicSequence int       `json:"clinic_sequence"`
	PatientNumber  int       `json:"patient_number"`
	Tone           string    `json:"tone"`
	CallToken      string    `json:"call_token"`
	CalledAt       time.Time `json:"called_at"`
}

// DetectCall derives a call event from a clinic change. Only a new,
// non-empty token counts; the number alone is never compared.
func DetectCall(old, new *Clinic) (CallEvent, bool) {
	if new == nil || new.CallToken == "" {
		return CallEvent{}, false
	}
	if old != nil && old.CallToken == new.CallToken {
		return CallEvent{}, false
	}
	return NewCallEvent(new), true
}

func NewCallEvent(c *Clinic) CallEvent {
	ev := CallEvent{
		ClinicID:       c.ID,
		ClinicName:     c.Name,
		ClinicSequence: c.SequenceNumber,
		PatientNumber:  c.CurrentNumber,
		Tone:           ToneDing,
		CallToken:      c.CallToken,
	}
	if c.LastCalledAt != nil {
		ev.CalledAt = *c.LastCalledAt
	}
	return ev
}

// ToneFor picks the intro tone for a notification type.
func ToneFor(t NotificationType) string {
	switch t {
	case NotificationEmergency:
		return ToneEmergency
	case NotificationTransfer:
		return ToneRing
	default:
		return ToneDing
	}
}
