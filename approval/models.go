// Package approval implements the two-phase request approval workflow:
// supervisor approval followed by responsible-party approval, with per-actor
// vote tracking and unanimous-pool quorums.
package approval

import (
	"encoding/json"
	"sort"
	"time"
)

// Status tracks a request through its lifecycle. Transitions are strictly
// forward-moving; Approved and Rejected are terminal.
type Status string

const (
	StatusAwaitingSupervisor  Status = "awaiting_supervisor"
	StatusAwaitingResponsible Status = "awaiting_responsible"
	StatusApproved            Status = "approved"
	StatusRejected            Status = "rejected"
)

// Terminal reports whether no further transition may leave this status.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Valid reports whether s is one of the lifecycle statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusAwaitingSupervisor, StatusAwaitingResponsible, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Phase identifies which approver pool a request is currently waiting on.
type Phase string

const (
	PhaseSupervisor  Phase = "supervisor"
	PhaseResponsible Phase = "responsible"
)

// Category partitions requests into the two disjoint approval domains.
// A supervisor qualified for one category may never vote on the other.
type Category string

const (
	CategoryHuman    Category = "human"
	CategoryNonHuman Category = "nonhuman"
)

// Type enumerates the operations a requester may ask for. Each type belongs
// to exactly one Category (see CategoryOf).
type Type string

const (
	TypeAddClient      Type = "add_client"
	TypeDeleteClient   Type = "delete_client"
	TypeAddClientUser  Type = "add_client_user"
	TypeEditClientUser Type = "edit_client_user"
	TypeDelClientUser  Type = "delete_client_user"

	TypeAddSystemEntity  Type = "add_system_entity"
	TypeEditSystemEntity Type = "edit_system_entity"
	TypeDelSystemEntity  Type = "delete_system_entity"

	TypeAddTeamEntity  Type = "add_team_entity"
	TypeEditTeamEntity Type = "edit_team_entity"
	TypeDelTeamEntity  Type = "delete_team_entity"

	TypeAddNonHumanEntity  Type = "add_nonhuman_entity"
	TypeEditNonHumanEntity Type = "edit_nonhuman_entity"
	TypeDelNonHumanEntity  Type = "delete_nonhuman_entity"
)

var categoryByType = map[Type]Category{
	TypeAddClient:      CategoryHuman,
	TypeDeleteClient:   CategoryHuman,
	TypeAddClientUser:  CategoryHuman,
	TypeEditClientUser: CategoryHuman,
	TypeDelClientUser:  CategoryHuman,

	TypeAddSystemEntity:  CategoryHuman,
	TypeEditSystemEntity: CategoryHuman,
	TypeDelSystemEntity:  CategoryHuman,

	TypeAddTeamEntity:  CategoryHuman,
	TypeEditTeamEntity: CategoryHuman,
	TypeDelTeamEntity:  CategoryHuman,

	TypeAddNonHumanEntity:  CategoryNonHuman,
	TypeEditNonHumanEntity: CategoryNonHuman,
	TypeDelNonHumanEntity:  CategoryNonHuman,
}

// CategoryOf returns the approval category for a request type, and false for
// unknown types.
func CategoryOf(t Type) (Category, bool) {
	c, ok := categoryByType[t]
	return c, ok
}

// VoteSet records which actor IDs have cast a given vote in a phase.
// It marshals as a sorted JSON array of IDs.
type VoteSet map[string]struct{}

// Has reports whether actorID is in the set.
func (v VoteSet) Has(actorID string) bool {
	_, ok := v[actorID]
	return ok
}

// Add inserts actorID into the set, allocating it on first use.
func (v *VoteSet) Add(actorID string) {
	if *v == nil {
		*v = make(VoteSet)
	}
	(*v)[actorID] = struct{}{}
}

func (v VoteSet) MarshalJSON() ([]byte, error) {
	ids := make([]string, 0, len(v))
	for id := range v {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return json.Marshal(ids)
}

func (v *VoteSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*v = make(VoteSet, len(ids))
	for _, id := range ids {
		(*v)[id] = struct{}{}
	}
	return nil
}

// Request is an auditable approval record. Requests are never deleted; both
// approvals and rejections remain queryable after reaching a terminal status.
type Request struct {
	ID            string          `json:"id"`
	RequesterID   string          `json:"requester_id"`
	RequesterName string          `json:"requester_name"`
	Type          Type            `json:"type"`
	CreatedAt     time.Time       `json:"created_at"`
	Status        Status          `json:"status"`
	Payload       json.RawMessage `json:"payload,omitempty"`

	SupervisorsApproved  VoteSet `json:"supervisors_approved"`
	SupervisorsRejected  VoteSet `json:"supervisors_rejected"`
	ResponsiblesApproved VoteSet `json:"responsibles_approved"`
	ResponsiblesRejected VoteSet `json:"responsibles_rejected"`
}

// Category returns the request's approval category.
func (r *Request) Category() Category {
	c, _ := CategoryOf(r.Type)
	return c
}

// Phase returns the pool the request is currently waiting on, and false when
// the request is terminal.
func (r *Request) Phase() (Phase, bool) {
	switch r.Status {
	case StatusAwaitingSupervisor:
		return PhaseSupervisor, true
	case StatusAwaitingResponsible:
		return PhaseResponsible, true
	default:
		return "", false
	}
}

func (r *Request) votes(p Phase) (approved, rejected *VoteSet) {
	if p == PhaseSupervisor {
		return &r.SupervisorsApproved, &r.SupervisorsRejected
	}
	return &r.ResponsiblesApproved, &r.ResponsiblesRejected
}

func (r *Request) clone() *Request {
	out := *r
	out.Payload = append(json.RawMessage(nil), r.Payload...)
	out.SupervisorsApproved = cloneSet(r.SupervisorsApproved)
	out.SupervisorsRejected = cloneSet(r.SupervisorsRejected)
	out.ResponsiblesApproved = cloneSet(r.ResponsiblesApproved)
	out.ResponsiblesRejected = cloneSet(r.ResponsiblesRejected)
	return &out
}

func cloneSet(v VoteSet) VoteSet {
	if v == nil {
		return nil
	}
	out := make(VoteSet, len(v))
	for id := range v {
		out[id] = struct{}{}
	}
	return out
}
