package model

import "github.com/lib/pq"

type Screen struct {
	Base
	SequenceNumber int    `db:"sequence_number" json:"sequence_number"`
	Name           string `db:"name" json:"name"`
	Secret         string `db:"secret" json:"-"`
}

type Doctor struct {
	Base
	SequenceNumber int            `db:"sequence_number" json:"sequence_number"`
	Name           string         `db:"name" json:"name"`
	Specialty      string         `db:"specialty" json:"specialty"`
	ImageRef       string         `db:"image_ref" json:"image_ref"`
	WorkingDays    pq.StringArray `db:"working_days" json:"working_days"`
	Phone          string         `db:"phone" json:"phone"`
}

type CreateScreenRequest struct {
	SequenceNumber int    `json:"sequence_number" binding:"required,min=1"`
	Name           string `json:"name" binding:"required,max=100"`
	Secret         string `json:"secret" binding:"required"`
}

type CreateDoctorRequest struct {
	SequenceNumber int      `json:"sequence_number" binding:"required,min=1"`
	Name           string   `json:"name" binding:"required,max=200"`
	Specialty      string   `json:"specialty" binding:"max=200"`
	ImageRef       string   `json:"image_ref" binding:"max=500"`
	WorkingDays    []string `json:"working_days"`
	Phone          string   `json:"phone" binding:"max=50"`
}
