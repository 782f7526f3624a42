package services

import (
	"context"
	"time"
)

// now is the clock used for every timestamp the services write.
var now = time.Now

// Actor identifies who performed an action, for the audit trail.
type Actor struct {
	UserID    string
	UserName  string
	UserRole  string
	IPAddress string
	SessionID string
}

// DefaultActor is used when a request carries no identity.
var DefaultActor = Actor{
	UserID:   "tana-chen",
	UserName: "Tana Chen",
	UserRole: "Chief Risk & Compliance Officer",
}

// SystemActor performs automated work such as scheduled scans.
var SystemActor = Actor{
	UserID:    "system",
	UserName:  "System",
	UserRole:  "System",
	IPAddress: "127.0.0.1",
	SessionID: "sys_automated",
}

type actorKey struct{}

// WithActor attaches the acting user to ctx.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the acting user, falling back to DefaultActor.
func ActorFrom(ctx context.Context) Actor {
	if a, ok := ctx.Value(actorKey{}).(Actor); ok {
		return a
	}
	return DefaultActor
}
