package model

import "github.com/google/uuid"

// Principal is the authenticated caller as decoded from the access token.
type Principal struct {
	UserID uuid.UUID
	Email  string
	Role   UserRole
}

func (p Principal) IsContractor() bool {
	return p.Role == UserRoleContractor
}

func (p Principal) IsOrgMember() bool {
	return p.Role == UserRoleOrgMember
}

func (p Principal) IsSupport() bool {
	return p.Role == UserRoleSupport
}

func (p Principal) IsPlatformAdmin() bool {
	return p.Role == UserRoleAdmin
}
