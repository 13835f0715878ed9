package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"llm-colosseum/server/elo"
)

// Memory is a mutex-guarded in-process store. It backs DSN-less development
// runs and the test suite; the single lock makes resolve-and-rate atomic and
// serializes check-then-insert on first touch.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]Session
	ratings  map[string]Rating
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		sessions: map[string]Session{},
		ratings:  map[string]Rating{},
	}
}

func (m *Memory) GetOrCreateSession(_ context.Context, id string, candidates []string) (Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s, false, nil
	}
	modelA, modelB, err := drawPair(candidates)
	if err != nil {
		return Session{}, false, err
	}
	s := Session{
		ID:        id,
		ModelA:    modelA,
		ModelB:    modelB,
		Status:    StatusActive,
		CreatedAt: time.Now(),
	}
	m.sessions[id] = s
	return s, true, nil
}

func (m *Memory) SessionExists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	return ok, nil
}

func (m *Memory) ResolveSession(_ context.Context, id string, winner elo.Tag) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if s.Status == StatusCompleted {
		return Session{}, ErrAlreadyResolved
	}

	now := time.Now()
	s.Status = StatusCompleted
	s.Winner = winner
	s.UpdatedAt = &now
	m.sessions[id] = s

	ra := m.ratingLocked(s.ModelA)
	rb := m.ratingLocked(s.ModelB)
	newA, newB, ok := elo.Update(ra.Value, rb.Value, winner)
	if !ok {
		slog.Warn("unrecognized winner tag, ratings left unchanged",
			"winner", string(winner), "model_a", s.ModelA, "model_b", s.ModelB)
		return s, nil
	}
	ra.Value, rb.Value = newA, newB
	ra.Battles++
	rb.Battles++
	m.ratings[s.ModelA] = ra
	m.ratings[s.ModelB] = rb
	return s, nil
}

func (m *Memory) ratingLocked(model string) Rating {
	if r, ok := m.ratings[model]; ok {
		return r
	}
	r := Rating{ModelID: model, Value: elo.InitialRating}
	m.ratings[model] = r
	return r
}

func (m *Memory) GetRating(_ context.Context, model string) (Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ratingLocked(model), nil
}

func (m *Memory) Leaderboard(_ context.Context) ([]Standing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Standing, 0, len(m.ratings))
	for _, r := range m.ratings {
		out = append(out, Standing{ModelID: r.ModelID, Rating: r.Value, Battles: r.Battles})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].ModelID < out[j].ModelID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}
