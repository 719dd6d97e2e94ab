package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationNormal    NotificationType = "normal"
	NotificationEmergency NotificationType = "emergency"
	NotificationTransfer  NotificationType = "transfer"
	NotificationNameCall  NotificationType = "name_call"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationNormal, NotificationEmergency, NotificationTransfer, NotificationNameCall:
		return true
	}
	return false
}

// Notification is append-only; rows are never updated after insert.
type Notification struct {
	ID            uuid.UUID        `db:"id" json:"id"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	FromLabel     string           `db:"from_label" json:"from_label"`
	ToClinicID    *uuid.UUID       `db:"to_clinic_id" json:"to_clinic_id,omitempty"`
	ToAdmin       bool             `db:"to_admin" json:"to_admin"`
	Type          NotificationType `db:"type" json:"type"`
	Message       string           `db:"message" json:"message"`
	PatientNumber *int             `db:"patient_number" json:"patient_number,omitempty"`
}

// Validate rejects records whose type is not one of the known variants.
func (n *Notification) Validate() error {
	if !n.Type.Valid() {
		return fmt.Errorf("unknown notification type %q", n.Type)
	}
	return nil
}

type SendNotificationRequest struct {
	Type          NotificationType `json:"type" binding:"required,notification_type"`
	ToClinicID    *uuid.UUID       `json:"to_clinic_id"`
	ToAdmin       bool             `json:"to_admin"`
	Message       string           `json:"message" binding:"max=500"`
	PatientNumber *int             `json:"patient_number" binding:"omitempty,min=0"`
}
