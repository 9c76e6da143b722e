package bus

import (
	"log/slog"
	"sync"
)

const (
	partialTopicCap = 64
	finalTopicCap   = 16
	promptTopicCap  = 16
)

// Bus routes pipeline messages between producers and consumers.
// Delivery is in-order per producer; there is no cross-producer
// ordering guarantee.
type Bus struct {
	done chan struct{}

	mu          sync.Mutex
	closed      bool
	partialSubs []chan RecognitionEvent
	activitySub []chan struct{}
	finals      chan RecognitionEvent
	prompts     chan *Prompt
}

// New creates a Bus.
func New() *Bus {
	return &Bus{
		done:    make(chan struct{}),
		finals:  make(chan RecognitionEvent, finalTopicCap),
		prompts: make(chan *Prompt, promptTopicCap),
	}
}

// SubscribePartials registers a new consumer of partial recognition
// events. When a subscriber falls behind, its oldest buffered partial is
// dropped to make room.
func (b *Bus) SubscribePartials() <-chan RecognitionEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan RecognitionEvent, partialTopicCap)
	b.partialSubs = append(b.partialSubs, ch)
	return ch
}

// PublishPartial broadcasts a non-final recognition event to all partial
// subscribers. Never blocks.
func (b *Bus) PublishPartial(ev RecognitionEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.notifyActivityLocked()
	for _, ch := range b.partialSubs {
		for {
			select {
			case ch <- ev:
			default:
				// Full subscriber: shed the oldest partial and retry.
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// PublishFinal delivers a final recognition event to the orchestrator.
// Blocks under backpressure rather than dropping.
func (b *Bus) PublishFinal(ev RecognitionEvent) {
	select {
	case b.finals <- ev:
		b.NotifyActivity()
	case <-b.done:
		slog.Warn("bus: final dropped after close", "text", ev.Text)
	}
}

// Finals returns the final recognition topic. Single consumer.
func (b *Bus) Finals() <-chan RecognitionEvent {
	return b.finals
}

// PublishPrompt delivers a prompt to the orchestrator. Blocks under
// backpressure rather than dropping.
func (b *Bus) PublishPrompt(p *Prompt) {
	select {
	case b.prompts <- p:
		b.NotifyActivity()
	case <-b.done:
		slog.Warn("bus: prompt dropped after close", "id", p.ID, "source", p.Source)
	}
}

// Prompts returns the prompt topic. Single consumer.
func (b *Bus) Prompts() <-chan *Prompt {
	return b.prompts
}

// SubscribeActivity registers a consumer of the coalescing activity
// signal used to re-arm idle timers.
func (b *Bus) SubscribeActivity() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan struct{}, 1)
	b.activitySub = append(b.activitySub, ch)
	return ch
}

// NotifyActivity signals that something happened (speech, playback end,
// manual prompt). Coalesced; never blocks. Publishing a partial, final
// or prompt notifies implicitly.
func (b *Bus) NotifyActivity() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.notifyActivityLocked()
}

func (b *Bus) notifyActivityLocked() {
	for _, ch := range b.activitySub {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Done is closed when the bus shuts down. Consumers of Finals and
// Prompts select on it alongside their topic channel.
func (b *Bus) Done() <-chan struct{} {
	return b.done
}

// Close terminates all topics. Publishing after Close is a no-op.
// The Finals and Prompts channels are intentionally left open so that
// racing producers never hit a closed channel; consumers observe Done.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
	for _, ch := range b.partialSubs {
		close(ch)
	}
	for _, ch := range b.activitySub {
		close(ch)
	}
}
