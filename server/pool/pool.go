// Package pool loads the model endpoint map: the read-only set of models
// eligible for battle pairing, keyed by model id with opaque routing metadata.
package pool

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
)

// ErrEmptyMap reports an endpoint map file with no usable entries.
var ErrEmptyMap = errors.New("model endpoint map is empty")

// Pool is an immutable snapshot of the candidate models. It is built once and
// passed explicitly to whoever needs it; there is no ambient global.
type Pool struct {
	endpoints  map[string]json.RawMessage
	candidates []string
}

// Load reads a JSON object of model id -> routing metadata from path.
func Load(path string) (*Pool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model endpoint map: %w", err)
	}
	return Parse(b)
}

// Parse builds a Pool from raw endpoint-map JSON.
func Parse(b []byte) (*Pool, error) {
	endpoints := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &endpoints); err != nil {
		return nil, fmt.Errorf("parse model endpoint map: %w", err)
	}
	if len(endpoints) == 0 {
		return nil, ErrEmptyMap
	}
	candidates := make([]string, 0, len(endpoints))
	for id := range endpoints {
		candidates = append(candidates, id)
	}
	sort.Strings(candidates)
	return &Pool{endpoints: endpoints, candidates: candidates}, nil
}

// Candidates returns the model ids eligible for pairing, in sorted order.
// Callers must not mutate the returned slice.
func (p *Pool) Candidates() []string { return p.candidates }

// Len reports how many models are in the pool.
func (p *Pool) Len() int { return len(p.candidates) }

// Endpoint returns the routing metadata stored for a model id.
func (p *Pool) Endpoint(model string) (json.RawMessage, bool) {
	e, ok := p.endpoints[model]
	return e, ok
}
