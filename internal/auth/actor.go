package auth

import (
	"context"

	"github.com/ayurlink/clinic-management/internal/core/datamodel/clinic"
)

// Actor is the caller identity the domain services check preconditions
// against. It is resolved by the JWT middleware; the services never look at
// tokens themselves.
type Actor struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == clinic.RoleAdmin
}

func (a *Actor) IsDoctor() bool {
	return a != nil && a.Role == clinic.RoleDoctor
}

func (a *Actor) IsPatient() bool {
	return a != nil && a.Role == clinic.RolePatient
}

// CanActFor reports whether the actor may view or act on a resource owned
// by the given patient. Admins always may; patients only on their own.
func (a *Actor) CanActFor(patientID int64) bool {
	if a == nil {
		return false
	}
	if a.Role == clinic.RoleAdmin {
		return true
	}
	return a.Role == clinic.RolePatient && a.ID == patientID
}

type actorCtxKey string

const actorKey actorCtxKey = "actor"

func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func ActorFromContext(ctx context.Context) (*Actor, bool) {
	actor, ok := ctx.Value(actorKey).(*Actor)
	return actor, ok && actor != nil
}
