package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CompletionReport struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID      uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	ContractID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"contract_id"`
	CompletionDate time.Time `gorm:"not null;index" json:"completion_date"`
	Note           string    `json:"note,omitempty"`
	CreatedBy      uuid.UUID `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
}

func (r *CompletionReport) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

type Evaluation struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_evaluations_project_evaluator" json:"project_id"`
	EvaluatorID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_evaluations_project_evaluator" json:"evaluator_id"`
	ContractorID  uuid.UUID `gorm:"type:uuid;not null;index" json:"contractor_id"`
	Quality       int       `gorm:"not null" json:"quality"`
	Schedule      int       `gorm:"not null" json:"schedule"`
	Communication int       `gorm:"not null" json:"communication"`
	Safety        int       `gorm:"not null" json:"safety"`
	Cleanliness   int       `gorm:"not null" json:"cleanliness"`
	Comment       string    `json:"comment"`
	Average       float64   `gorm:"not null" json:"average"`
	CreatedAt     time.Time `json:"created_at"`
}

// BeforeSave keeps Average derived from the five subscores.
func (e *Evaluation) BeforeSave(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.Average = e.ComputeAverage()
	return nil
}

func (e *Evaluation) ComputeAverage() float64 {
	sum := e.Quality + e.Schedule + e.Communication + e.Safety + e.Cleanliness
	return float64(sum) / 5
}
