// Package session runs the orchestrator, the turn loop at the heart of
// the assistant: it dequeues prompts by priority, streams the language
// model's reply through the sentence splitter into the speech pipeline,
// and persists the exchange. It owns the stop signal that the speech
// workers observe for barge-in.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"google.golang.org/api/iterator"

	"github.com/guri-assistant/guri/pkg/bus"
	"github.com/guri-assistant/guri/pkg/llm"
	"github.com/guri-assistant/guri/pkg/memstore"
	"github.com/guri-assistant/guri/pkg/speech"
	"github.com/guri-assistant/guri/pkg/ttsq"
)

// DefaultApology is spoken when the language model fails outright.
const DefaultApology = "すみません、うまく答えられませんでした。"

const defaultHistoryTurns = 40

// Config wires an Orchestrator. LLM, TTS and Memory are required.
type Config struct {
	LLM    llm.Client
	TTS    *ttsq.Pipeline
	Memory *Memory

	// Store mirrors the exchange into long-term memory when set.
	Store *memstore.Store

	// Stop is the process-wide barge-in signal shared with the speech
	// pipeline.
	Stop *atomic.Bool

	// System is the dialogue system instruction.
	System string

	// Apology replaces DefaultApology when set.
	Apology string

	// Screenshot captures the selected window as PNG, best effort.
	// UseImage gates whether it is consulted at all.
	Screenshot func() []byte
	UseImage   func() bool

	UserName string
	BotName  string

	// HistoryTurns bounds how many session events ride along as
	// context.
	HistoryTurns int

	// CreateBlog enables the end-of-session blog record.
	CreateBlog bool

	Logger *slog.Logger
}

// Orchestrator is the sole consumer of the bus prompt topic.
type Orchestrator struct {
	cfg   Config
	bus   *bus.Bus
	queue *promptQueue

	gen    atomic.Uint64
	active atomic.Bool

	cancelMu   sync.Mutex
	cancelTurn context.CancelFunc

	wg sync.WaitGroup
}

// New validates the configuration and builds an Orchestrator. A missing
// collaborator is a startup failure, reported once and not retried.
func New(cfg Config, b *bus.Bus) (*Orchestrator, error) {
	if cfg.LLM == nil {
		return nil, fmt.Errorf("session: no language model configured")
	}
	if cfg.TTS == nil {
		return nil, fmt.Errorf("session: no speech pipeline configured")
	}
	if cfg.Memory == nil {
		return nil, fmt.Errorf("session: no session memory configured")
	}
	if cfg.Stop == nil {
		cfg.Stop = new(atomic.Bool)
	}
	if cfg.Apology == "" {
		cfg.Apology = DefaultApology
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = defaultHistoryTurns
	}
	if cfg.BotName == "" {
		cfg.BotName = "ぐり"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{cfg: cfg, bus: b, queue: newPromptQueue()}, nil
}

// Start launches the intake, barge-in watch and turn loops.
func (o *Orchestrator) Start(ctx context.Context) {
	o.wg.Add(3)
	go o.intake(ctx)
	go o.bargeWatch(ctx)
	go o.turnLoop(ctx)
}

// Wait blocks until the loops exit.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// Submit enqueues a prompt directly and returns its turn ID.
func (o *Orchestrator) Submit(p *bus.Prompt) string {
	o.queue.push(p)
	return p.ID
}

// Active reports whether a turn is in flight.
func (o *Orchestrator) Active() bool { return o.active.Load() }

// Pending reports how many prompts are waiting.
func (o *Orchestrator) Pending() int { return o.queue.len() }

// CancelCurrent asserts the barge-in signal: playback abandons its
// current blob, the current generation is drained from both speech
// queues, and the in-flight LLM stream is torn down. Safe to call with
// no turn active; leftover audio from the previous turn still stops.
func (o *Orchestrator) CancelCurrent() {
	o.cfg.Stop.Store(true)
	o.cfg.TTS.Drain(o.gen.Load())
	o.cancelMu.Lock()
	if o.cancelTurn != nil {
		o.cancelTurn()
	}
	o.cancelMu.Unlock()
}

// Finish seals the session and writes its long-term records: a
// one-sentence summary keyed by the session ID and, when enabled, a
// blog post drafted from the full history.
func (o *Orchestrator) Finish(ctx context.Context) {
	o.CancelCurrent()
	o.queue.close()
	o.cfg.Memory.Seal()

	history := o.cfg.Memory.History()
	if o.cfg.Store == nil || strings.TrimSpace(history) == "" {
		return
	}

	summary, err := llm.Summarize(ctx, o.cfg.LLM, history)
	if err != nil {
		o.cfg.Logger.Warn("session: summary failed", "error", err)
	} else {
		o.cfg.Store.Save(memstore.Record{
			ID:      o.cfg.Memory.ID(),
			Kind:    memstore.KindSessionSummary,
			Source:  "session",
			Content: summary,
		})
	}

	if o.cfg.CreateBlog {
		post, err := llm.GenerateBlog(ctx, o.cfg.LLM, history)
		if err != nil {
			o.cfg.Logger.Warn("session: blog generation failed", "error", err)
		} else {
			o.cfg.Store.Save(memstore.Record{
				Kind:    memstore.KindBlog,
				Source:  "session",
				Content: post.Title + "\n\n" + post.Body,
			})
		}
	}
}

func (o *Orchestrator) intake(ctx context.Context) {
	defer o.wg.Done()
	defer o.queue.close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.bus.Done():
			return
		case p := <-o.bus.Prompts():
			o.queue.push(p)
		}
	}
}

// bargeWatch asserts the stop signal when the user starts talking over
// playing audio.
func (o *Orchestrator) bargeWatch(ctx context.Context) {
	defer o.wg.Done()
	partials := o.bus.SubscribePartials()
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.bus.Done():
			return
		case ev := <-partials:
			if ev.Text != "" && o.cfg.TTS.Playing() {
				o.cfg.Logger.Info("session: barge-in", "heard", ev.Text)
				o.CancelCurrent()
			}
		}
	}
}

func (o *Orchestrator) turnLoop(ctx context.Context) {
	defer o.wg.Done()
	for {
		p := o.queue.pop()
		if p == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		o.runTurn(ctx, p)
	}
}

func promptEventKind(src bus.Source) EventKind {
	switch src {
	case bus.SourceChat:
		return EventChatMessage
	case bus.SourceAuto:
		return EventAutoCommentary
	default:
		return EventUserSpeech
	}
}

func (o *Orchestrator) runTurn(ctx context.Context, p *bus.Prompt) {
	g := o.gen.Add(1)
	// The previous turn's barge-in, if any, ends here.
	o.cfg.Stop.Store(false)

	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.cancelMu.Lock()
	o.cancelTurn = cancel
	o.cancelMu.Unlock()
	o.active.Store(true)
	defer func() {
		o.active.Store(false)
		o.cancelMu.Lock()
		o.cancelTurn = nil
		o.cancelMu.Unlock()
	}()

	log := o.cfg.Logger.With("gen", g, "source", p.Source, "turn", p.ID)
	log.Info("session: turn start", "text", p.Text)

	// History is captured before the prompt lands in it.
	history := o.historyTurns()
	author := o.cfg.UserName
	if author == "" {
		author = "user"
	}
	if p.Source == bus.SourceChat || p.Source == bus.SourceAuto {
		author = string(p.Source)
	}
	o.cfg.Memory.Append(promptEventKind(p.Source), author, p.Text)
	o.mirror(p.Source, p.Text)

	img := p.Image
	if img == nil && o.cfg.UseImage != nil && o.cfg.UseImage() && o.cfg.Screenshot != nil {
		img = o.cfg.Screenshot()
	}

	response, cancelled := o.streamResponse(turnCtx, g, &llm.Request{
		System:  o.cfg.System,
		History: history,
		Prompt:  p.Text,
		Image:   img,
	}, log)

	// A barged-in turn that never streamed anything leaves no trace; an
	// empty completed turn is still recorded.
	if response != "" || !cancelled {
		o.cfg.Memory.Append(EventAIResponse, o.cfg.BotName, response)
		o.mirror("assistant", response)
	}
	o.cfg.TTS.EndTurn(g)

	if p.Reply != nil && response != "" && !cancelled {
		p.Reply(response)
	}
	log.Info("session: turn end", "cancelled", cancelled, "len", len(response))
}

// streamResponse drives the LLM stream into the speech pipeline and
// returns the accumulated response text. A cancelled turn returns what
// had streamed before the barge-in; drained queues mean only the spoken
// prefix was ever heard.
func (o *Orchestrator) streamResponse(ctx context.Context, g uint64, req *llm.Request, log *slog.Logger) (string, bool) {
	stream, err := o.cfg.LLM.AskStream(ctx, req)
	if err != nil {
		log.Error("session: llm call failed", "error", err)
		o.cfg.TTS.Submit(ttsq.Unit{Gen: g, Text: o.cfg.Apology})
		return o.cfg.Apology, false
	}
	defer stream.Close()

	split := speech.NewSplitter(0)
	var full strings.Builder
	for {
		chunk, err := stream.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			log.Error("session: llm stream broke", "error", err)
			if full.Len() == 0 {
				o.cfg.TTS.Submit(ttsq.Unit{Gen: g, Text: o.cfg.Apology})
				return o.cfg.Apology, false
			}
			break
		}
		if o.cfg.Stop.Load() || ctx.Err() != nil {
			o.cfg.TTS.Drain(g)
			return full.String(), true
		}
		full.WriteString(chunk)
		for _, unit := range split.Push(chunk) {
			o.cfg.TTS.Submit(ttsq.Unit{Gen: g, Text: unit})
		}
	}
	if tail := split.Flush(); tail != "" {
		o.cfg.TTS.Submit(ttsq.Unit{Gen: g, Text: tail})
	}
	return full.String(), false
}

func (o *Orchestrator) mirror(source bus.Source, content string) {
	if o.cfg.Store == nil || content == "" {
		return
	}
	o.cfg.Store.Save(memstore.Record{
		Kind:    memstore.KindConversation,
		Source:  string(source),
		Content: content,
	})
}

// historyTurns renders the recent session events as LLM history.
func (o *Orchestrator) historyTurns() []llm.Turn {
	events := o.cfg.Memory.Events()
	if len(events) > o.cfg.HistoryTurns {
		events = events[len(events)-o.cfg.HistoryTurns:]
	}
	turns := make([]llm.Turn, 0, len(events))
	for _, ev := range events {
		role := llm.RoleUser
		if ev.Kind == EventAIResponse {
			role = llm.RoleModel
		}
		turns = append(turns, llm.Turn{Role: role, Name: ev.Author, Content: ev.Content})
	}
	return turns
}
