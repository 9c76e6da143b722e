package bus

import (
	"testing"
	"time"
)

func TestPartialFanOut(t *testing.T) {
	b := New()
	defer b.Close()

	a := b.SubscribePartials()
	c := b.SubscribePartials()

	ev := RecognitionEvent{Text: "こんにち", At: time.Now()}
	b.PublishPartial(ev)

	for _, ch := range []<-chan RecognitionEvent{a, c} {
		select {
		case got := <-ch:
			if got.Text != ev.Text {
				t.Errorf("partial text = %q; want %q", got.Text, ev.Text)
			}
		default:
			t.Fatal("subscriber did not receive partial")
		}
	}
}

func TestPartialOverflowDropsOldest(t *testing.T) {
	b := New()
	defer b.Close()

	ch := b.SubscribePartials()
	for i := 0; i < partialTopicCap+5; i++ {
		b.PublishPartial(RecognitionEvent{Text: string(rune('a' + i%26))})
	}

	// The newest partial must have survived; the first five must be gone.
	var last RecognitionEvent
	n := 0
	for {
		select {
		case ev := <-ch:
			last = ev
			n++
			continue
		default:
		}
		break
	}
	if n != partialTopicCap {
		t.Errorf("buffered partials = %d; want %d", n, partialTopicCap)
	}
	want := string(rune('a' + (partialTopicCap+4)%26))
	if last.Text != want {
		t.Errorf("newest partial = %q; want %q", last.Text, want)
	}
}

func TestFinalsNeverDropped(t *testing.T) {
	b := New()
	defer b.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < finalTopicCap+4; i++ {
			b.PublishFinal(RecognitionEvent{Text: "f", Final: true})
		}
	}()

	received := 0
	timeout := time.After(2 * time.Second)
	for received < finalTopicCap+4 {
		select {
		case <-b.Finals():
			received++
		case <-timeout:
			t.Fatalf("received %d finals; want %d", received, finalTopicCap+4)
		}
	}
	<-done
}

func TestActivityCoalesces(t *testing.T) {
	b := New()
	defer b.Close()

	ch := b.SubscribeActivity()
	for i := 0; i < 10; i++ {
		b.NotifyActivity()
	}

	<-ch
	select {
	case <-ch:
		t.Fatal("activity signal was not coalesced")
	default:
	}
}

func TestPublishAfterClose(t *testing.T) {
	b := New()
	b.SubscribePartials()
	b.Close()

	// Must not panic or block.
	b.PublishPartial(RecognitionEvent{Text: "x"})
	b.PublishFinal(RecognitionEvent{Text: "y", Final: true})
	b.PublishPrompt(NewPrompt(SourceAuto, "z", PriorityNormal))
	b.NotifyActivity()
	b.Close()
}

func TestPromptDefaults(t *testing.T) {
	p := NewPrompt(SourceHotword, "今何時？", PriorityHigh)
	if p.ID == "" {
		t.Error("prompt ID is empty")
	}
	if p.At.IsZero() {
		t.Error("prompt timestamp is zero")
	}
	if p.Priority != PriorityHigh {
		t.Errorf("priority = %d; want %d", p.Priority, PriorityHigh)
	}
}
