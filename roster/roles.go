// Package roster holds the principal directory: who exists, what role they
// carry, and which approver pools they belong to.
package roster

import "github.com/picis-sec/picis/approval"

// Role is a tagged principal role. Authorization decisions go through the
// capability table below rather than comparing role strings at call sites.
type Role string

const (
	// Client-facing roles, scoped to a client group.
	RoleAnalyst     Role = "analyst"
	RoleSupervisor  Role = "supervisor"
	RoleResponsible Role = "responsible"

	// Internal authentication-management roles.
	RoleHumanAuthManager    Role = "human_auth_manager"
	RoleNonHumanAuthManager Role = "nonhuman_auth_manager"
	RoleHumanSupervisor     Role = "human_entity_supervisor"
	RoleNonHumanSupervisor  Role = "nonhuman_entity_supervisor"
	RoleAuthResponsible     Role = "auth_responsible"
)

type capability struct {
	supervises     approval.Category
	isSupervisor   bool
	isResponsible  bool
	canSubmit      bool
	clientFacing   bool
}

var capabilities = map[Role]capability{
	RoleAnalyst:     {clientFacing: true},
	RoleSupervisor:  {clientFacing: true},
	RoleResponsible: {clientFacing: true},

	RoleHumanAuthManager:    {canSubmit: true},
	RoleNonHumanAuthManager: {canSubmit: true},

	RoleHumanSupervisor:    {isSupervisor: true, supervises: approval.CategoryHuman},
	RoleNonHumanSupervisor: {isSupervisor: true, supervises: approval.CategoryNonHuman},

	RoleAuthResponsible: {isResponsible: true},
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := capabilities[r]
	return ok
}

// Supervises returns the category r supervises, and false for roles without
// supervisor capability.
func (r Role) Supervises() (approval.Category, bool) {
	c, ok := capabilities[r]
	if !ok || !c.isSupervisor {
		return "", false
	}
	return c.supervises, true
}

// IsResponsibleApprover reports whether r belongs to the responsible pool.
func (r Role) IsResponsibleApprover() bool {
	return capabilities[r].isResponsible
}

// CanSubmit reports whether r may submit approval requests.
func (r Role) CanSubmit() bool {
	return capabilities[r].canSubmit
}

// ClientFacing reports whether r is a client-group role. Client-facing
// principals get the longer inactivity timeout tier.
func (r Role) ClientFacing() bool {
	return capabilities[r].clientFacing
}
