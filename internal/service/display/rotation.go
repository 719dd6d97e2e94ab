package display

import (
	"sort"
	"time"

	"github.com/jwalitptl/clinic-queue/internal/model"
)

const DefaultRotationPeriod = 10 * time.Second

// DoctorRotation cycles the doctor card shown on screens.
type DoctorRotation struct {
	period  time.Duration
	doctors []*model.Doctor
	idx     int
}

func NewDoctorRotation(period time.Duration) *DoctorRotation {
	if period <= 0 {
		period = DefaultRotationPeriod
	}
	return &DoctorRotation{period: period}
}

func (r *DoctorRotation) Period() time.Duration { return r.period }

// Set replaces the list, ordered by sequence number. The position is kept
// when still in range.
func (r *DoctorRotation) Set(doctors []*model.Doctor) {
	r.doctors = append([]*model.Doctor(nil), doctors...)
	sort.SliceStable(r.doctors, func(i, j int) bool {
		return r.doctors[i].SequenceNumber < r.doctors[j].SequenceNumber
	})
	if r.idx >= len(r.doctors) {
		r.idx = 0
	}
}

func (r *DoctorRotation) Current() (*model.Doctor, bool) {
	if len(r.doctors) == 0 {
		return nil, false
	}
	return r.doctors[r.idx], true
}

func (r *DoctorRotation) Advance() (*model.Doctor, bool) {
	if len(r.doctors) == 0 {
		return nil, false
	}
	r.idx = (r.idx + 1) % len(r.doctors)
	return r.doctors[r.idx], true
}
