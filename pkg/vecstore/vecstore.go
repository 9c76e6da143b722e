// Package vecstore provides nearest-neighbor search over the embedding
// vectors attached to memory records.
//
// The Index interface is the contract; Memory is a brute-force cosine
// index suitable for the tens of thousands of records a desktop session
// accumulates. A client for a dedicated vector database can be swapped
// in behind the same interface.
package vecstore

// Index is the interface for nearest-neighbor search over dense float32
// vectors. Implementations must be safe for concurrent use.
type Index interface {
	// Upsert adds or replaces a vector under the given ID.
	Upsert(id string, vector []float32) error

	// Search returns the top-k nearest vectors to the query, closest
	// first.
	Search(query []float32, topK int) ([]Match, error)

	// Delete removes a vector by ID. No error if the ID is absent.
	Delete(id string) error

	// Len returns the number of stored vectors.
	Len() int

	// Close releases resources held by the index.
	Close() error
}

// Match is a single result from a similarity search.
type Match struct {
	// ID identifies the matched vector.
	ID string

	// Distance is the cosine distance to the query (0 = identical).
	Distance float32
}
