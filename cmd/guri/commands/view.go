package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/guri-assistant/guri/pkg/cli"
	"github.com/guri-assistant/guri/pkg/recog"
	"github.com/guri-assistant/guri/pkg/session"
)

const (
	viewWidth  = 80
	viewHeight = 24
)

func stdoutIsTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// runView redraws the live session frame until the context ends. The
// section closures are polled on every redraw, so the frame tracks the
// transcript and log as they change.
func runView(ctx context.Context, mem *session.Memory, transcriber *recog.Transcriber, logs *cli.LogWriter) {
	frame := cli.Frame{
		Styles: cli.NewStyles(cli.DefaultTheme),
		Title:  "guri",
		Status: "session " + mem.ID(),
		Sections: []cli.Section{
			{Label: "Hearing", Content: func() []string {
				if p := transcriber.Partial(); p != "" {
					return []string{p}
				}
				return []string{""}
			}},
			{Label: "Last response", Content: func() []string {
				return []string{lastResponse(mem)}
			}},
			{Label: "Log", Content: func() []string {
				return logs.Tail(6)
			}},
		},
		Help: "ctrl-c to quit",
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case <-ticker.C:
			fmt.Print("\033[H\033[2J" + frame.Render(viewWidth, viewHeight))
		}
	}
}

func lastResponse(mem *session.Memory) string {
	events := mem.Events()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == session.EventAIResponse {
			return events[i].Content
		}
	}
	return ""
}
