package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/guri-assistant/guri/pkg/audio"
	"github.com/guri-assistant/guri/pkg/bridge"
	"github.com/guri-assistant/guri/pkg/bus"
	"github.com/guri-assistant/guri/pkg/chat"
	"github.com/guri-assistant/guri/pkg/cli"
	"github.com/guri-assistant/guri/pkg/idle"
	"github.com/guri-assistant/guri/pkg/kv"
	"github.com/guri-assistant/guri/pkg/llm"
	"github.com/guri-assistant/guri/pkg/memstore"
	"github.com/guri-assistant/guri/pkg/recog"
	"github.com/guri-assistant/guri/pkg/session"
	"github.com/guri-assistant/guri/pkg/settings"
	"github.com/guri-assistant/guri/pkg/speech"
	"github.com/guri-assistant/guri/pkg/ttsq"
	"github.com/guri-assistant/guri/pkg/vecstore"
)

var runFlags struct {
	inputWAV   string
	whisperURL string
	bridgeURL  string
	remoteURL  string
	bridgeCmd  string
	nodClip    string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an interactive session",
	Long: `Start an interactive session: listen to the microphone, answer when
addressed, reply to chat mentions, and persist the conversation.

The recognizer and synthesis engines are external HTTP sidecars; pass
--bridge-cmd to have guri launch and supervise the local engine itself.`,
	RunE: runSession,
}

func init() {
	runCmd.Flags().StringVar(&runFlags.inputWAV, "input", "", "WAV file to use instead of the microphone")
	runCmd.Flags().StringVar(&runFlags.whisperURL, "whisper-url", "http://127.0.0.1:8080", "speech recognition server")
	runCmd.Flags().StringVar(&runFlags.bridgeURL, "bridge-url", "http://127.0.0.1:50021", "local synthesis engine")
	runCmd.Flags().StringVar(&runFlags.remoteURL, "tts-url", "", "large-model synthesis server")
	runCmd.Flags().StringVar(&runFlags.bridgeCmd, "bridge-cmd", "", "command to launch the local synthesis engine")
	runCmd.Flags().StringVar(&runFlags.nodClip, "nod-clip", "", "WAV played when a cancel phrase is heard")
	rootCmd.AddCommand(runCmd)
}

func runSession(cmd *cobra.Command, args []string) error {
	paths, store, err := loadSettings()
	if err != nil {
		return err
	}
	cfg := store.Get()

	log, logView, logClose, err := openLogger(paths.LogFile(), stdoutIsTerminal())
	if err != nil {
		return err
	}
	defer logClose()
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Language model. The session cannot start without one.
	model, err := buildLLM(ctx, cfg)
	if err != nil {
		return err
	}

	// Long-term memory.
	db, err := kv.NewBadger(kv.BadgerOptions{Dir: paths.MemoryDir()})
	if err != nil {
		return fmt.Errorf("open memory db: %w", err)
	}
	defer db.Close()
	index := vecstore.NewMemory()
	defer index.Close()

	mem := memstore.New(memstore.Config{
		KV:       db,
		Index:    index,
		Embedder: model,
		Summarizer: func(ctx context.Context, text string) (string, error) {
			return llm.Summarize(ctx, model, text)
		},
		Logger: log,
	})
	if err := mem.Start(ctx); err != nil {
		return err
	}
	defer mem.Close()

	// Synthesis engines, optionally supervising the local one.
	local := speech.NewBridge(runFlags.bridgeURL)
	if parts := strings.Fields(runFlags.bridgeCmd); len(parts) > 0 {
		sup := bridge.New(bridge.Config{
			Command: parts[0],
			Args:    parts[1:],
			Label:   "tts-bridge",
			Restart: true,
			Logger:  log,
		})
		if err := sup.Start(ctx); err != nil {
			return err
		}
		defer sup.Stop()
		if err := local.WaitReady(ctx); err != nil {
			return err
		}
	}
	primary, secondary, err := buildEngines(ctx, cfg, local, log)
	if err != nil {
		return err
	}

	out := &audio.PlayerOutput{}
	defer out.Close()

	b := bus.New()
	defer b.Close()

	stop := new(atomic.Bool)
	pipe := ttsq.New(ttsq.Config{
		Primary:   primary,
		Secondary: secondary,
		VoiceID:   strconv.Itoa(cfg.TTSVoiceID),
		Output:    out,
		Stop:      stop,
		OnTurnDone: func(gen uint64) {
			b.NotifyActivity()
			if cfg.ResponseDisplayDurationMS > 0 {
				log.Debug("turn audio complete", "gen", gen,
					"display_for", time.Duration(cfg.ResponseDisplayDurationMS)*time.Millisecond)
			}
		},
		Logger: log,
	})
	pipe.Start(ctx)
	defer pipe.Close()

	sessionMem := session.NewMemory()
	orch, err := session.New(session.Config{
		LLM:        model,
		TTS:        pipe,
		Memory:     sessionMem,
		Store:      mem,
		Stop:       stop,
		System:     systemPrompt(cfg),
		UserName:   cfg.UserName,
		CreateBlog: cfg.CreateBlogPost,
		UseImage:   func() bool { return cfg.UseImage },
		Screenshot: screenshotFunc(cfg),
		Logger:     log,
	}, b)
	if err != nil {
		return err
	}
	orch.Start(ctx)

	// Recognition.
	rec := recog.NewWhisper(runFlags.whisperURL, "ja")
	transcriber := recog.NewTranscriber(rec, b, log)
	go transcriber.Run(ctx)

	gate := recog.NewGate(recog.GateConfig{
		OnCancel: func() {
			orch.CancelCurrent()
			playNod(out, log)
		},
		OnAmbient: func(text string, _ time.Time) {
			if cfg.IsPrivate {
				return
			}
			sessionMem.Append(session.EventAmbientSpeech, cfg.UserName, text)
			mem.Save(memstore.Record{Kind: memstore.KindAmbient, Source: "mic", Content: text})
		},
	}, b)
	go gate.Run()

	// Spontaneous commentary.
	if cfg.EnableAutoCommentary {
		commentator := idle.New(idle.Config{
			MinInterval: time.Duration(cfg.AutoCommentaryMinS) * time.Second,
			MaxInterval: time.Duration(cfg.AutoCommentaryMaxS) * time.Second,
			Busy: func() bool {
				return orch.Active() || pipe.Busy() || transcriber.Partial() != ""
			},
			History: sessionMem.History,
			Logger:  log,
		}, b)
		go commentator.Run(ctx)
	}

	// Chat.
	if cfg.Chat.URL != "" {
		var client *chat.Client
		adapter := chat.NewAdapter(chat.AdapterConfig{
			BotName: "guri",
			OnMessage: func(m chat.Message) {
				sessionMem.Append(session.EventChatMessage, m.Author, m.Text)
				mem.Save(memstore.Record{Kind: memstore.KindConversation, Source: "chat", Content: m.Author + ": " + m.Text})
			},
			Send:   func(text string) error { return client.Send(text) },
			Logger: log,
		}, b)
		client = chat.NewClient(cfg.Chat.URL, adapter, log)
		go client.Run(ctx)
	}

	// Audio in.
	src, err := buildSource(cfg)
	if err != nil {
		return err
	}
	if err := src.Start(ctx, transcriber.Feed); err != nil {
		return err
	}
	defer src.Stop()

	log.Info("session started", "id", sessionMem.ID())
	if logView != nil {
		go runView(ctx, sessionMem, transcriber, logView)
	}
	<-ctx.Done()
	log.Info("session stopping")

	shutdownCtx, done := context.WithTimeout(context.Background(), 30*time.Second)
	defer done()
	orch.Finish(shutdownCtx)
	orch.Wait()
	return nil
}

func buildLLM(ctx context.Context, cfg settings.Settings) (llm.Client, error) {
	geminiKey := os.Getenv("GEMINI_API_KEY")
	openaiKey := os.Getenv("OPENAI_API_KEY")

	var compat *llm.OpenAICompat
	if openaiKey != "" {
		var opts []llm.OpenAIOption
		if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
			opts = append(opts, llm.WithOpenAIBaseURL(base))
		}
		compat = llm.NewOpenAICompat(openaiKey, opts...)
	}

	if geminiKey != "" {
		opts := []llm.GeminiOption{llm.WithDisableThinking(cfg.DisableThinking)}
		if compat != nil {
			opts = append(opts, llm.WithGeminiEmbedder(compat))
		}
		return llm.NewGemini(ctx, geminiKey, opts...)
	}
	if compat != nil {
		return compat, nil
	}
	return nil, fmt.Errorf("no API key configured: set GEMINI_API_KEY or OPENAI_API_KEY")
}

// buildEngines returns the speaking engine and its fallback per the
// tts_engine setting.
func buildEngines(ctx context.Context, cfg settings.Settings, local *speech.Bridge, log *slog.Logger) (speech.Synthesizer, speech.Synthesizer, error) {
	var remote *speech.Remote
	if runFlags.remoteURL != "" {
		remote = speech.NewRemote(runFlags.remoteURL)
		if err := remote.WaitReady(ctx); err != nil {
			log.Warn("large-model engine unavailable", "error", err)
			remote = nil
		}
	}

	switch cfg.TTSEngine {
	case settings.EnginePrimary, settings.EngineSecondary:
		if remote == nil {
			log.Warn("remote engine selected but not configured, using local bridge")
			return local, nil, nil
		}
		if err := remote.Preload(ctx, strconv.Itoa(cfg.TTSVoiceID)); err != nil {
			log.Warn("voice warmup failed", "error", err)
		}
		return remote, local, nil
	default:
		if remote != nil {
			return local, remote, nil
		}
		return local, nil, nil
	}
}

func buildSource(cfg settings.Settings) (audio.Source, error) {
	if runFlags.inputWAV != "" {
		return &audio.FileSource{Path: runFlags.inputWAV, Realtime: true}, nil
	}
	return &audio.RecorderSource{Device: cfg.AudioDevice}, nil
}

// screenshotFunc captures the selected window (or the whole screen) as
// PNG via ImageMagick's import. Best effort: nil on any failure.
func screenshotFunc(cfg settings.Settings) func() []byte {
	return func() []byte {
		window := cfg.Window
		if window == "" {
			window = "root"
		}
		out, err := exec.Command("import", "-silent", "-window", window, "png:-").Output()
		if err != nil {
			return nil
		}
		return out
	}
}

func systemPrompt(cfg settings.Settings) string {
	name := cfg.UserName
	if name == "" {
		name = "ユーザー"
	}
	return "あなたは「ぐり」という名前のデスクトップ音声アシスタントです。" +
		name + "の作業を眺めながら、短く自然な日本語で応答してください。" +
		"返答は話し言葉で、2〜3文以内にまとめてください。"
}

func playNod(out audio.Output, log *slog.Logger) {
	if runFlags.nodClip == "" {
		return
	}
	data, err := os.ReadFile(runFlags.nodClip)
	if err != nil {
		log.Warn("nod clip unreadable", "error", err)
		return
	}
	samples, rate, err := audio.DecodeWAV(data)
	if err != nil {
		log.Warn("nod clip not WAV", "error", err)
		return
	}
	if rate != audio.SampleRate {
		samples, err = audio.Resample(samples, rate, audio.SampleRate)
		if err != nil {
			log.Warn("nod clip resample failed", "error", err)
			return
		}
	}
	go out.Write(samples)
}

// openLogger logs to the session file plus either stderr or, when the
// live view will own the terminal, a ring buffer the view renders from.
func openLogger(path string, interactive bool) (*slog.Logger, *cli.LogWriter, func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open log: %w", err)
	}
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	var view *cli.LogWriter
	var w io.Writer = io.MultiWriter(os.Stderr, f)
	if interactive {
		view = cli.NewLogWriter(200)
		w = io.MultiWriter(view, f)
	}
	log := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return log, view, func() { f.Close() }, nil
}
