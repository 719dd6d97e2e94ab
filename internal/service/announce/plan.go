package announce

import (
	"strconv"

	"github.com/jwalitptl/clinic-queue/internal/model"
)

type SegmentKind string

const (
	SegmentTone   SegmentKind = "tone"
	SegmentNumber SegmentKind = "number"
	SegmentClinic SegmentKind = "clinic"
)

// Segment is one audio resource; ID doubles as the resource name.
type Segment struct {
	Kind SegmentKind `json:"kind"`
	ID   string      `json:"id"`
}

// Plan orders a call announcement: tone, then the patient number, then
// the clinic.
func Plan(ev model.CallEvent) []Segment {
	tone := ev.Tone
	if tone == "" {
		tone = model.ToneDing
	}
	return []Segment{
		{Kind: SegmentTone, ID: tone},
		{Kind: SegmentNumber, ID: strconv.Itoa(ev.PatientNumber)},
		{Kind: SegmentClinic, ID: "clinic" + strconv.Itoa(ev.ClinicSequence)},
	}
}

// Chime is a single tone, used for follow-up alerts and banners.
func Chime(tone string) []Segment {
	return []Segment{{Kind: SegmentTone, ID: tone}}
}
