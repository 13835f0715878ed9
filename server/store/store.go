// Package store persists battle sessions and model ratings. Two independent
// tables, cross-referenced by model id only: battle_sessions keyed by the
// caller-supplied rpid, ratings keyed by model id.
package store

import (
	"context"
	"math/rand"
	"time"

	"llm-colosseum/server/elo"
)

// Status of a battle session. Transitions one way: active -> completed.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Session is one head-to-head battle. The model pair is fixed at creation;
// Winner is set exactly once, at the transition to completed.
type Session struct {
	ID        string
	ModelA    string
	ModelB    string
	Status    Status
	Winner    elo.Tag // empty while active
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// Rating is a model's current Elo standing.
type Rating struct {
	ModelID string
	Value   int
	Battles int
}

// Standing is one leaderboard row. Rank is the 1-based position in the
// rating-descending order, contiguous even across ties.
type Standing struct {
	Rank    int    `json:"rank"`
	ModelID string `json:"model_id"`
	Rating  int    `json:"rating"`
	Battles int    `json:"battles"`
}

// Store is the persistence contract shared by the Postgres and in-memory
// implementations.
type Store interface {
	// GetOrCreateSession returns the session for id, creating it with two
	// distinct models drawn from candidates if unseen. created reports
	// whether this call inserted the row. Concurrent first-touch calls for
	// the same id yield exactly one persisted session.
	GetOrCreateSession(ctx context.Context, id string, candidates []string) (Session, bool, error)

	// SessionExists reports whether id has a session.
	SessionExists(ctx context.Context, id string) (bool, error)

	// ResolveSession completes the session and applies the Elo update to
	// both participants as one atomic unit. A completed session cannot be
	// resolved again (ErrAlreadyResolved).
	ResolveSession(ctx context.Context, id string, winner elo.Tag) (Session, error)

	// GetRating returns a model's rating, lazily creating the initial entry.
	GetRating(ctx context.Context, model string) (Rating, error)

	// Leaderboard returns all standings sorted by rating descending.
	Leaderboard(ctx context.Context) ([]Standing, error)
}

// drawPair picks two distinct models uniformly without replacement.
func drawPair(candidates []string) (a, b string, err error) {
	if len(candidates) < 2 {
		return "", "", ErrPoolExhausted
	}
	i := rand.Intn(len(candidates))
	j := rand.Intn(len(candidates) - 1)
	if j >= i {
		j++
	}
	return candidates[i], candidates[j], nil
}
