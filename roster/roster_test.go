package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picis-sec/picis/approval"
)

func testRoster() *Roster {
	return New(
		Principal{ID: "u1", Name: "Patricia", Email: "sup-h@example.com", Role: RoleHumanSupervisor, Active: true},
		Principal{ID: "u2", Name: "Miguel", Email: "sup-nh@example.com", Role: RoleNonHumanSupervisor, Active: true},
		Principal{ID: "u3", Name: "Elena", Email: "resp@example.com", Role: RoleAuthResponsible, Active: true},
		Principal{ID: "u4", Name: "Laura", Email: "mgr-h@example.com", Role: RoleHumanAuthManager, Active: true},
		Principal{ID: "u5", Name: "Carmen", Email: "sup-h2@example.com", Role: RoleHumanSupervisor, Active: false},
	)
}

func TestRoster_Pools(t *testing.T) {
	r := testRoster()

	// Inactive u5 must not appear in the human pool.
	assert.Equal(t, []string{"u1"}, r.SupervisorPool(approval.CategoryHuman))
	assert.Equal(t, []string{"u2"}, r.SupervisorPool(approval.CategoryNonHuman))
	assert.Equal(t, []string{"u3"}, r.ResponsiblePool())
}

func TestRoster_Lookup(t *testing.T) {
	r := testRoster()

	p, err := r.ByEmail("mgr-h@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u4", p.ID)

	_, err = r.ByEmail("stranger@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	p, err = r.ByID("u2")
	require.NoError(t, err)
	assert.Equal(t, RoleNonHumanSupervisor, p.Role)
}

func TestRoster_PutReplacesEmailIndex(t *testing.T) {
	r := testRoster()
	r.Put(Principal{ID: "u4", Name: "Laura", Email: "laura@example.com", Role: RoleHumanAuthManager, Active: true})

	_, err := r.ByEmail("mgr-h@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	p, err := r.ByEmail("laura@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u4", p.ID)
}

func TestRole_Capabilities(t *testing.T) {
	cat, ok := RoleHumanSupervisor.Supervises()
	require.True(t, ok)
	assert.Equal(t, approval.CategoryHuman, cat)

	_, ok = RoleAuthResponsible.Supervises()
	assert.False(t, ok)
	assert.True(t, RoleAuthResponsible.IsResponsibleApprover())

	assert.True(t, RoleHumanAuthManager.CanSubmit())
	assert.False(t, RoleAnalyst.CanSubmit())

	assert.True(t, RoleAnalyst.ClientFacing())
	assert.False(t, RoleHumanAuthManager.ClientFacing())

	assert.True(t, RoleSupervisor.Valid())
	assert.False(t, Role("intern").Valid())
}
