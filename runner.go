package parley

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Runner drives a chat session over line-based IO.
// This allows for easy testing and integration with different frontends (CLI, TUI, etc).
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	Headless bool
	Renderer ContentRenderer

	// SessionID identifies the conversation. Required.
	SessionID string
	// ScenarioID is started before the first prompt. Zero waits for the user to ask.
	ScenarioID int64
}

// ContentRenderer is a function that transforms the content before outputting it.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)

// quitWords end the runner loop without touching the session.
var quitWords = map[string]bool{"/quit": true, "quit": true}

// Run executes the chat loop until EOF, a quit word or ctx cancellation.
func (r *Runner) Run(ctx context.Context, engine *Engine) error {
	if r.Input == nil {
		return errors.New("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return errors.New("output writer must be set (use os.Stdout)")
	}
	if r.SessionID == "" {
		return errors.New("session id must be set")
	}

	lines := bufio.NewReader(r.Input)
	if !r.Headless {
		fmt.Fprintf(r.Output, "--- Parley chat (session %s) ---\n", r.SessionID)
	}

	if r.ScenarioID > 0 {
		r.print(engine.Chat(ctx, r.SessionID, ChatRequest{ScenarioID: r.ScenarioID}))
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !r.Headless {
			fmt.Fprint(r.Output, "> ")
		}

		text, err := lines.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("input error: %w", err)
		}
		eof := err != nil

		input := strings.TrimSpace(text)
		if quitWords[strings.ToLower(input)] {
			fmt.Fprintln(r.Output, "Bye!")
			return nil
		}
		if input != "" || !eof {
			clean, serr := SanitizeInput(input)
			if serr != nil {
				fmt.Fprintf(r.Output, "! %v\n", serr)
			} else {
				r.print(engine.Chat(ctx, r.SessionID, ChatRequest{Message: clean}))
			}
		}
		if eof {
			return nil
		}
	}
}

func (r *Runner) print(resp *ChatResponse) {
	output := resp.Message
	if r.Renderer != nil {
		if rendered, err := r.Renderer(output); err == nil {
			output = rendered
		}
	}
	if resp.MessageType == MessageError {
		output = "! " + strings.TrimSpace(output)
	}
	fmt.Fprintln(r.Output, strings.TrimSpace(output))

	for _, choice := range resp.Choices {
		label := choice.Label
		if choice.Emoji != "" {
			label = choice.Emoji + " " + label
		}
		fmt.Fprintf(r.Output, "  [%s] %s\n", choice.Value, label)
	}
	if resp.Completed && !r.Headless {
		fmt.Fprintln(r.Output, "(end of scenario)")
	}
}
