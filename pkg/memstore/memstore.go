// Package memstore is the durable long-term memory. A single writer
// goroutine drains a task queue and is the only code that touches the
// key-value store and the vector index, so persistence needs no locks
// and writes land in enqueue order.
package memstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/guri-assistant/guri/pkg/kv"
	"github.com/guri-assistant/guri/pkg/llm"
	"github.com/guri-assistant/guri/pkg/vecstore"
)

const recPrefix = "mem:rec:"

// Record kinds.
const (
	KindConversation   = "conversation"
	KindAmbient        = "ambient"
	KindSessionSummary = "session_summary"
	KindBlog           = "blog"
	KindNote           = "note"
)

// Record is one persisted memory. Embedding is present only when an
// embedder was available at save time; records without it are stored
// but never surface in semantic queries.
type Record struct {
	ID        string    `msgpack:"id"`
	Kind      string    `msgpack:"kind"`
	Source    string    `msgpack:"source"`
	Content   string    `msgpack:"content"`
	CreatedAt int64     `msgpack:"created_at"`
	Embedding []float32 `msgpack:"embedding,omitempty"`
}

// Summarizer reduces text to at most one sentence before storage.
type Summarizer func(ctx context.Context, text string) (string, error)

type taskKind int

const (
	taskSave taskKind = iota
	taskSummarizeSave
	taskQuery
	taskUpdate
	taskDelete
)

type task struct {
	kind   taskKind
	record Record
	query  string
	topK   int
	kinds  []string
	id     string
	fut    *Future
}

// Future carries the result of an asynchronous query.
type Future struct {
	ch chan queryResult
}

type queryResult struct {
	records []Record
	err     error
}

// Wait blocks until the query resolves or ctx is done.
func (f *Future) Wait(ctx context.Context) ([]Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-f.ch:
		return r.records, r.err
	}
}

// Config wires a Store. KV is required. Index, Embedder and Summarizer
// are optional; without Index or Embedder, saves succeed but semantic
// query returns nothing.
type Config struct {
	KV         kv.Store
	Index      vecstore.Index
	Embedder   llm.Embedder
	Summarizer Summarizer
	Logger     *slog.Logger
}

type Store struct {
	cfg   Config
	tasks chan *task
	done  chan struct{}
}

func New(cfg Config) *Store {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Store{
		cfg:   cfg,
		tasks: make(chan *task, 64),
		done:  make(chan struct{}),
	}
}

// Start rebuilds the vector index from the persisted records and
// launches the writer. It must be called before any task is enqueued.
func (s *Store) Start(ctx context.Context) error {
	if s.cfg.Index != nil {
		var n int
		for entry, err := range s.cfg.KV.List(ctx, recPrefix) {
			if err != nil {
				return fmt.Errorf("memstore: reindex: %w", err)
			}
			var rec Record
			if err := msgpack.Unmarshal(entry.Value, &rec); err != nil {
				s.cfg.Logger.Warn("memstore: skipping corrupt record", "key", entry.Key, "error", err)
				continue
			}
			if len(rec.Embedding) == 0 {
				continue
			}
			if err := s.cfg.Index.Upsert(rec.ID, rec.Embedding); err != nil {
				s.cfg.Logger.Warn("memstore: reindex upsert", "id", rec.ID, "error", err)
				continue
			}
			n++
		}
		s.cfg.Logger.Info("memstore: index rebuilt", "vectors", n)
	}
	go s.writer(ctx)
	return nil
}

// Save persists a record. A zero ID or CreatedAt is filled in.
func (s *Store) Save(rec Record) {
	s.enqueue(&task{kind: taskSave, record: rec})
}

// SummarizeAndSave reduces the record's content to one sentence before
// persisting. If the summarizer fails the record is dropped.
func (s *Store) SummarizeAndSave(rec Record) {
	s.enqueue(&task{kind: taskSummarizeSave, record: rec})
}

// Query resolves to the top-k most similar records, optionally filtered
// to the given kinds. The returned Future resolves once the writer
// reaches the task; earlier writes are therefore always visible.
func (s *Store) Query(text string, topK int, kinds ...string) *Future {
	fut := &Future{ch: make(chan queryResult, 1)}
	s.enqueue(&task{kind: taskQuery, query: text, topK: topK, kinds: kinds, fut: fut})
	return fut
}

// Metadata carries the mutable non-content fields of a record. Empty
// fields leave the stored value unchanged.
type Metadata struct {
	Kind   string
	Source string
}

// Update replaces a record's content and metadata. A changed content
// re-embeds the record; empty arguments keep the stored values.
func (s *Store) Update(id, content string, meta Metadata) {
	s.enqueue(&task{kind: taskUpdate, id: id, record: Record{
		Content: content,
		Kind:    meta.Kind,
		Source:  meta.Source,
	}})
}

// Delete removes a record from the store and the index.
func (s *Store) Delete(id string) {
	s.enqueue(&task{kind: taskDelete, id: id})
}

// List returns all persisted records, newest first. It reads the store
// directly and may run concurrently with the writer.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	var records []Record
	for entry, err := range s.cfg.KV.List(ctx, recPrefix) {
		if err != nil {
			return nil, fmt.Errorf("memstore: list: %w", err)
		}
		var rec Record
		if err := msgpack.Unmarshal(entry.Value, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt > records[j].CreatedAt
	})
	return records, nil
}

// Get fetches one record by ID.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	data, err := s.cfg.KV.Get(ctx, recPrefix+id)
	if err != nil {
		return Record{}, fmt.Errorf("memstore: get %s: %w", id, err)
	}
	var rec Record
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("memstore: decode %s: %w", id, err)
	}
	return rec, nil
}

// Close signals the writer to exit after the queued tasks drain, and
// waits for it.
func (s *Store) Close() {
	s.tasks <- nil
	<-s.done
}

func (s *Store) enqueue(t *task) {
	s.tasks <- t
}

func (s *Store) writer(ctx context.Context) {
	defer close(s.done)
	for t := range s.tasks {
		if t == nil {
			return
		}
		switch t.kind {
		case taskSave:
			s.doSave(ctx, t.record)
		case taskSummarizeSave:
			s.doSummarizeSave(ctx, t.record)
		case taskQuery:
			records, err := s.doQuery(ctx, t.query, t.topK, t.kinds)
			t.fut.ch <- queryResult{records: records, err: err}
		case taskUpdate:
			s.doUpdate(ctx, t.id, t.record)
		case taskDelete:
			s.doDelete(ctx, t.id)
		}
	}
}

func (s *Store) doSave(ctx context.Context, rec Record) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().UnixNano()
	}
	if len(rec.Embedding) == 0 && s.cfg.Embedder != nil && rec.Content != "" {
		vec, err := s.cfg.Embedder.Embed(ctx, rec.Content)
		if err != nil {
			s.cfg.Logger.Warn("memstore: embedding failed, saving unembedded",
				"id", rec.ID, "error", err)
		} else {
			rec.Embedding = vec
		}
	}

	data, err := msgpack.Marshal(&rec)
	if err != nil {
		s.cfg.Logger.Error("memstore: encode", "id", rec.ID, "error", err)
		return
	}
	if err := s.cfg.KV.Set(ctx, recPrefix+rec.ID, data); err != nil {
		s.cfg.Logger.Error("memstore: save", "id", rec.ID, "error", err)
		return
	}
	if len(rec.Embedding) > 0 && s.cfg.Index != nil {
		if err := s.cfg.Index.Upsert(rec.ID, rec.Embedding); err != nil {
			s.cfg.Logger.Warn("memstore: index upsert", "id", rec.ID, "error", err)
		}
	}
}

func (s *Store) doSummarizeSave(ctx context.Context, rec Record) {
	if s.cfg.Summarizer == nil {
		s.doSave(ctx, rec)
		return
	}
	summary, err := s.cfg.Summarizer(ctx, rec.Content)
	if err != nil {
		s.cfg.Logger.Warn("memstore: summarize failed, record dropped", "error", err)
		return
	}
	rec.Content = summary
	s.doSave(ctx, rec)
}

func (s *Store) doQuery(ctx context.Context, text string, topK int, kinds []string) ([]Record, error) {
	if s.cfg.Embedder == nil || s.cfg.Index == nil {
		return nil, nil
	}
	if topK <= 0 {
		topK = 5
	}
	vec, err := s.cfg.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("memstore: query embedding: %w", err)
	}

	// Over-fetch when filtering by kind so the filter does not starve
	// the result set.
	fetch := topK
	if len(kinds) > 0 {
		fetch *= 4
	}
	matches, err := s.cfg.Index.Search(vec, fetch)
	if err != nil {
		return nil, fmt.Errorf("memstore: query search: %w", err)
	}

	var records []Record
	for _, m := range matches {
		rec, err := s.Get(ctx, m.ID)
		if err != nil {
			s.cfg.Logger.Warn("memstore: indexed record missing", "id", m.ID, "error", err)
			continue
		}
		if len(kinds) > 0 && !contains(kinds, rec.Kind) {
			continue
		}
		records = append(records, rec)
		if len(records) == topK {
			break
		}
	}
	return records, nil
}

func (s *Store) doUpdate(ctx context.Context, id string, upd Record) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		s.cfg.Logger.Warn("memstore: update missing record", "id", id, "error", err)
		return
	}
	if upd.Content != "" && upd.Content != rec.Content {
		rec.Content = upd.Content
		rec.Embedding = nil
	}
	if upd.Kind != "" {
		rec.Kind = upd.Kind
	}
	if upd.Source != "" {
		rec.Source = upd.Source
	}
	s.doSave(ctx, rec)
}

func (s *Store) doDelete(ctx context.Context, id string) {
	if err := s.cfg.KV.Delete(ctx, recPrefix+id); err != nil {
		s.cfg.Logger.Warn("memstore: delete", "id", id, "error", err)
	}
	if s.cfg.Index != nil {
		if err := s.cfg.Index.Delete(id); err != nil {
			s.cfg.Logger.Warn("memstore: index delete", "id", id, "error", err)
		}
	}
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
