package vecstore

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// Memory is a brute-force in-memory Index using cosine distance.
type Memory struct {
	mu   sync.RWMutex
	dim  int
	vecs map[string][]float32
}

var _ Index = (*Memory)(nil)

// NewMemory creates an empty in-memory index. The dimension is fixed by
// the first inserted vector.
func NewMemory() *Memory {
	return &Memory{vecs: make(map[string][]float32)}
}

func (m *Memory) Upsert(id string, vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("vecstore: empty vector for %q", id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dim == 0 {
		m.dim = len(vector)
	} else if len(vector) != m.dim {
		return fmt.Errorf("vecstore: dimension mismatch for %q: got %d, want %d", id, len(vector), m.dim)
	}
	cp := make([]float32, len(vector))
	copy(cp, vector)
	m.vecs[id] = cp
	return nil
}

func (m *Memory) Search(query []float32, topK int) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.dim != 0 && len(query) != m.dim {
		return nil, fmt.Errorf("vecstore: query dimension %d, index dimension %d", len(query), m.dim)
	}
	if topK <= 0 {
		topK = 10
	}

	matches := make([]Match, 0, len(m.vecs))
	for id, vec := range m.vecs {
		matches = append(matches, Match{ID: id, Distance: cosineDistance(query, vec)})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *Memory) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vecs, id)
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vecs)
}

func (m *Memory) Close() error {
	return nil
}

func cosineDistance(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(na)*math.Sqrt(nb)))
}
