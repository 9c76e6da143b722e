package llm

import (
	"context"
	"io"

	"google.golang.org/api/iterator"

	"github.com/guri-assistant/guri/pkg/buffer"
)

const streamQueueSize = 32

// chunkStream is a Stream fed by a background pull goroutine through a
// bounded queue.
type chunkStream struct {
	q      *buffer.Queue[string]
	cancel context.CancelFunc
}

var _ Stream = (*chunkStream)(nil)

// newChunkStream returns the consumer half and a builder for the
// producing goroutine.
func newChunkStream(cancel context.CancelFunc) (*chunkStream, *streamBuilder) {
	q := buffer.NewQueue[string](streamQueueSize)
	return &chunkStream{q: q, cancel: cancel}, &streamBuilder{q: q}
}

func (s *chunkStream) Next() (string, error) {
	text, err := s.q.Next()
	if err == io.EOF {
		return "", iterator.Done
	}
	return text, err
}

func (s *chunkStream) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	return s.q.CloseWithError(iterator.Done)
}

// streamBuilder is the producer half of a chunkStream.
type streamBuilder struct {
	q *buffer.Queue[string]
}

func (b *streamBuilder) add(text string) error {
	if text == "" {
		return nil
	}
	return b.q.Put(text)
}

func (b *streamBuilder) done() {
	b.q.CloseWrite()
}

func (b *streamBuilder) abort(err error) {
	b.q.CloseWithError(err)
}
