package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRole string

const (
	UserRoleContractor UserRole = "contractor"
	UserRoleOrgMember  UserRole = "org_member"
	UserRoleSupport    UserRole = "support"
	UserRoleAdmin      UserRole = "admin"
)

type MembershipRole string

const (
	MembershipRoleAdmin  MembershipRole = "admin"
	MembershipRoleMember MembershipRole = "member"
)

type Organization struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"not null"`
	CreatedAt time.Time
}

func (o *Organization) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

type User struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email       string    `gorm:"not null;uniqueIndex"`
	Name        string    `gorm:"not null"`
	Role        UserRole  `gorm:"type:varchar(32);not null;index"`
	MemberLevel int       `gorm:"not null;default:0"`
	CreatedAt   time.Time
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

type Membership struct {
	OrganizationID uuid.UUID      `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Role           MembershipRole `gorm:"type:varchar(16);not null"`
	CreatedAt      time.Time
}
