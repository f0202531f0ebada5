package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SideEffectKind string

const (
	SideEffectNotify             SideEffectKind = "notify"
	SideEffectProvisionWorkspace SideEffectKind = "provision_workspace"
	SideEffectGrantAccess        SideEffectKind = "grant_access"
)

type SideEffectStatus string

const (
	SideEffectPending    SideEffectStatus = "pending"
	SideEffectProcessing SideEffectStatus = "processing"
	SideEffectDone       SideEffectStatus = "done"
	SideEffectFailed     SideEffectStatus = "failed"
	SideEffectDead       SideEffectStatus = "dead"
)

const sideEffectBaseBackoff = 30 * time.Second

// SideEffect is an outbox row written in the same transaction as the state
// change that caused it.
type SideEffect struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Kind          SideEffectKind   `gorm:"type:varchar(32);not null" json:"kind"`
	ProjectID     *uuid.UUID       `gorm:"type:uuid;index" json:"project_id,omitempty"`
	Payload       datatypes.JSON   `json:"payload"`
	Status        SideEffectStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	Attempts      int              `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts   int              `gorm:"not null;default:5" json:"max_attempts"`
	LastError     string           `json:"last_error,omitempty"`
	NextAttemptAt *time.Time       `json:"next_attempt_at,omitempty"`
	ProcessedAt   *time.Time       `json:"processed_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func (s *SideEffect) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = SideEffectPending
	}
	return nil
}

func (s *SideEffect) MarkDone(now time.Time) {
	s.Status = SideEffectDone
	s.ProcessedAt = &now
	s.NextAttemptAt = nil
	s.LastError = ""
}

// MarkFailed records a failed attempt and schedules the next one with
// exponential backoff. The task is dead once attempts reach MaxAttempts.
func (s *SideEffect) MarkFailed(now time.Time, errMsg string) {
	s.Attempts++
	s.LastError = errMsg
	if s.Attempts >= s.MaxAttempts {
		s.Status = SideEffectDead
		s.NextAttemptAt = nil
		return
	}
	s.Status = SideEffectFailed
	next := now.Add(sideEffectBaseBackoff * time.Duration(1<<uint(s.Attempts-1)))
	s.NextAttemptAt = &next
}

// NotifyPayload is the payload of a notify task.
type NotifyPayload struct {
	UserID uuid.UUID      `json:"user_id"`
	Kind   string         `json:"kind"`
	Data   map[string]any `json:"data,omitempty"`
}

// ProvisionPayload is the payload of a provision_workspace task.
type ProvisionPayload struct {
	ProjectID uuid.UUID   `json:"project_id"`
	Members   []uuid.UUID `json:"members,omitempty"`
}

// GrantAccessPayload is the payload of a grant_access task.
type GrantAccessPayload struct {
	ProjectID uuid.UUID `json:"project_id"`
	UserID    uuid.UUID `json:"user_id"`
	Role      string    `json:"role"`
}
