// Package identity carries the acting user (id + role) through request contexts.
package identity

import "context"

// Role identifies who is acting on a booking.
type Role string

const (
	RolePatient      Role = "patient"
	RoleReceptionist Role = "receptionist"
	RoleDoctor       Role = "doctor"
	RoleBranchAdmin  Role = "branch_admin"
	RoleSuperAdmin   Role = "super_admin"
)

// Valid reports whether the role is one the platform knows about.
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleReceptionist, RoleDoctor, RoleBranchAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Staff reports whether the role belongs to hospital staff rather than a patient.
func (r Role) Staff() bool {
	return r.Valid() && r != RolePatient
}

// Actor is the authenticated caller of a booking operation.
type Actor struct {
	ID   string
	Role Role
}

type ctxKey string

const actorKey ctxKey = "caresync.actor"

// WithActor stores the actor in context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext extracts the actor if present.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	val := ctx.Value(actorKey)
	if val == nil {
		return Actor{}, false
	}
	actor, ok := val.(Actor)
	return actor, ok && actor.ID != ""
}
