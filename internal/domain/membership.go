package domain

import "time"

// Role is the role a user holds within a tenant.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleAgent  Role = "agent"
	RoleMember Role = "member"
)

// Privileged reports whether the role may manage tenant integrations.
func (r Role) Privileged() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Tenant represents a customer workspace with isolated data and members.
type Tenant struct {
	ID        string
	Name      string
	Slug      string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TenantDomain maps a host name to a tenant for white-labeled deployments.
type TenantDomain struct {
	ID        int64
	Host      string
	TenantID  string
	IsPrimary bool
	Verified  bool
	CreatedAt time.Time
}

// Membership is the role-bearing relationship between a user and a tenant.
// Owned by the identity store; read-only from this service's perspective.
type Membership struct {
	TenantID  string
	UserID    string
	Role      Role
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
