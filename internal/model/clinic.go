package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type ClinicStatus string

const (
	ClinicStatusActive ClinicStatus = "active"
	ClinicStatusPaused ClinicStatus = "paused"
)

func (s ClinicStatus) Valid() bool {
	return s == ClinicStatusActive || s == ClinicStatusPaused
}

type Clinic struct {
	Base
	SequenceNumber  int            `db:"sequence_number" json:"sequence_number"`
	Name            string         `db:"name" json:"name"`
	CurrentNumber   int            `db:"current_number" json:"current_number"`
	CallToken       string         `db:"call_token" json:"call_token"`
	Status          ClinicStatus   `db:"status" json:"status"`
	OperatorSecret  string         `db:"operator_secret" json:"-"`
	LinkedScreenIDs pq.StringArray `db:"linked_screen_ids" json:"linked_screen_ids"`
	LastCalledAt    *time.Time     `db:"last_called_at" json:"last_called_at,omitempty"`
	Version         int64          `db:"version" json:"version"`
}

// ShownOn reports whether the clinic is announced on the given screen.
// A clinic without linked screens is shown everywhere.
func (c *Clinic) ShownOn(screenID uuid.UUID) bool {
	if len(c.LinkedScreenIDs) == 0 {
		return true
	}
	id := screenID.String()
	for _, s := range c.LinkedScreenIDs {
		if s == id {
			return true
		}
	}
	return false
}

// ClinicPatch is a partial clinic update. Nil fields are left untouched.
type ClinicPatch struct {
	Name            *string         `db:"name" json:"name,omitempty"`
	SequenceNumber  *int            `db:"sequence_number" json:"sequence_number,omitempty"`
	CurrentNumber   *int            `db:"current_number" json:"current_number,omitempty"`
	CallToken       *string         `db:"call_token" json:"call_token,omitempty"`
	Status          *ClinicStatus   `db:"status" json:"status,omitempty"`
	OperatorSecret  *string         `db:"operator_secret" json:"-"`
	LinkedScreenIDs *pq.StringArray `db:"linked_screen_ids" json:"linked_screen_ids,omitempty"`
	LastCalledAt    *time.Time      `db:"last_called_at" json:"last_called_at,omitempty"`
}

type CreateClinicRequest struct {
	SequenceNumber  int         `json:"sequence_number" binding:"required,min=1"`
	Name            string      `json:"name" binding:"required,max=200"`
	Secret          string      `json:"secret" binding:"required,min=4"`
	LinkedScreenIDs []uuid.UUID `json:"linked_screen_ids" binding:"max=32"`
}
