package identity

import (
	"context"
	"testing"
)

func TestActorRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), Actor{ID: "u-1", Role: RoleDoctor})

	actor, ok := ActorFromContext(ctx)
	if !ok {
		t.Fatal("expected actor in context")
	}
	if actor.ID != "u-1" || actor.Role != RoleDoctor {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestActorMissing(t *testing.T) {
	if _, ok := ActorFromContext(context.Background()); ok {
		t.Fatal("expected no actor in empty context")
	}
}

func TestRoleChecks(t *testing.T) {
	if !RoleReceptionist.Staff() {
		t.Error("receptionist should be staff")
	}
	if RolePatient.Staff() {
		t.Error("patient should not be staff")
	}
	if Role("intruder").Valid() {
		t.Error("unknown role should not be valid")
	}
}
