// Package followup tracks a patient's position in one clinic's queue from
// the clinic's change feed. It never writes.
package followup

import (
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/pkg/errors"
	"github.com/jwalitptl/clinic-queue/pkg/feed"
)

type State string

const (
	StateWaiting   State = "waiting"
	StateSoftAlert State = "soft_alert"
	StateYourTurn  State = "your_turn"
	StateMissed    State = "missed"
)

// Classify maps the number of people ahead onto a state.
func Classify(remaining int) State {
	switch {
	case remaining < 0:
		return StateMissed
	case remaining == 0:
		return StateYourTurn
	case remaining <= 2:
		return StateSoftAlert
	default:
		return StateWaiting
	}
}

// Effect is what the client should do on entering a state.
type Effect struct {
	Sound  bool `json:"sound"`
	Notify bool `json:"notify"`
}

func effectOf(s State) Effect {
	switch s {
	case StateSoftAlert:
		return Effect{Sound: true}
	case StateYourTurn:
		return Effect{Sound: true, Notify: true}
	}
	return Effect{}
}

type Transition struct {
	ClinicID      uuid.UUID `json:"clinic_id"`
	Ticket        int       `json:"ticket"`
	CurrentNumber int       `json:"current_number"`
	Remaining     int       `json:"remaining"`
	From          State     `json:"from"`
	To            State     `json:"to"`
	Effect        Effect    `json:"effect"`
}

// Tracker is owned by a single session loop.
type Tracker struct {
	clinicID  uuid.UUID
	ticket    int
	state     State
	remaining int
	primed    bool
}

func NewTracker(clinicID uuid.UUID, ticket int) (*Tracker, error) {
	if ticket < 0 {
		return nil, errors.BadRequest("ticket number must not be negative", nil)
	}
	return &Tracker{clinicID: clinicID, ticket: ticket}, nil
}

func (t *Tracker) ClinicID() uuid.UUID { return t.clinicID }

func (t *Tracker) Ticket() int { return t.ticket }

func (t *Tracker) State() State { return t.state }

func (t *Tracker) Remaining() int { return t.remaining }

// Restart follows a new ticket. The next observation primes again.
func (t *Tracker) Restart(ticket int) error {
	if ticket < 0 {
		return errors.BadRequest("ticket number must not be negative", nil)
	}
	t.ticket = ticket
	t.state = ""
	t.primed = false
	return nil
}

// Observe feeds the latest clinic image. The first observation sets the
// state without effects; afterwards only state changes are reported.
// Missed is terminal until Restart, though Remaining keeps following the
// clinic.
func (t *Tracker) Observe(c *model.Clinic) (Transition, bool) {
	if c == nil || c.ID != t.clinicID {
		return Transition{}, false
	}
	remaining := t.ticket - c.CurrentNumber
	t.remaining = remaining
	if t.primed && t.state == StateMissed {
		return Transition{}, false
	}

	next := Classify(remaining)

	if !t.primed {
		t.primed = true
		t.state = next
		return Transition{}, false
	}
	if next == t.state {
		return Transition{}, false
	}

	tr := Transition{
		ClinicID:      t.clinicID,
		Ticket:        t.ticket,
		CurrentNumber: c.CurrentNumber,
		Remaining:     remaining,
		From:          t.state,
		To:            next,
		Effect:        effectOf(next),
	}
	t.state = next
	return tr, true
}

// Handle decodes a clinics change event and observes its new image.
func (t *Tracker) Handle(ev model.ChangeEvent) (Transition, bool, error) {
	if ev.Collection != model.CollectionClinics || ev.Type.IsControl() {
		return Transition{}, false, nil
	}
	change, err := feed.Decode[model.Clinic](ev)
	if err != nil {
		return Transition{}, false, err
	}
	tr, ok := t.Observe(change.New)
	return tr, ok, nil
}
