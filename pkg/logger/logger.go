// Package logger prints every state change of a store.
//
//	st.Subscribe(logger.New[State]())
//
// Each record is printed as a title line (action, time, duration) followed by
// the previous state, the action and the next state. Colors are used when the
// output is a terminal.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/aretw0/relite/pkg/domain"
	"github.com/aretw0/relite/pkg/store"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

type config struct {
	out    io.Writer
	title  string
	color  *bool
	slog   *slog.Logger
	indent bool
}

// Option configures the change logger.
type Option func(*config)

// WithWriter sets the destination. Defaults to os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		if w != nil {
			c.out = w
		}
	}
}

// WithTitle prefixes every title line, typically with the store name.
func WithTitle(title string) Option {
	return func(c *config) {
		c.title = title
	}
}

// WithColor forces colors on or off instead of detecting a terminal.
func WithColor(enabled bool) Option {
	return func(c *config) {
		c.color = &enabled
	}
}

// WithIndent pretty-prints states over several lines.
func WithIndent() Option {
	return func(c *config) {
		c.indent = true
	}
}

// WithSlog emits one structured log entry per record instead of text blocks.
func WithSlog(logger *slog.Logger) Option {
	return func(c *config) {
		c.slog = logger
	}
}

const (
	colorTitle  = "#E0E0E0"
	colorPrev   = "#9E9E9E"
	colorAction = "#03A9F4"
	colorNext   = "#4CAF50"
)

// New returns a listener printing each record it receives.
func New[S any](opts ...Option) store.Listener[S] {
	cfg := config{out: os.Stdout}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.slog != nil {
		return func(rec domain.ChangeRecord[S]) error {
			cfg.slog.Info("State changed",
				"store", cfg.title,
				"action", rec.ActionType,
				"payload", rec.ActionPayload,
				"duration", rec.Duration(),
				"prev", rec.PreviousState,
				"next", rec.CurrentState,
			)
			return nil
		}
	}

	output := termenv.NewOutput(cfg.out, termenv.WithProfile(profileFor(cfg)))
	var mu sync.Mutex

	return func(rec domain.ChangeRecord[S]) error {
		title := fmt.Sprintf("action %s @ %s (in %.2f ms)",
			rec.ActionType,
			rec.End.Format("15:04:05.000"),
			float64(rec.Duration().Microseconds())/1000,
		)
		if cfg.title != "" {
			title = cfg.title + " " + title
		}
		action := domain.DevToolAction{Type: rec.ActionType, Payload: rec.ActionPayload}

		mu.Lock()
		defer mu.Unlock()

		lines := []struct {
			label, color string
			value        any
		}{
			{"prev state", colorPrev, rec.PreviousState},
			{"action    ", colorAction, action},
			{"next state", colorNext, rec.CurrentState},
		}

		if _, err := fmt.Fprintln(output, output.String(title).Bold().Foreground(output.Color(colorTitle))); err != nil {
			return err
		}
		for _, l := range lines {
			label := output.String(l.label).Bold().Foreground(output.Color(l.color))
			if _, err := fmt.Fprintf(output, "  %s %s\n", label, render(l.value, cfg.indent)); err != nil {
				return err
			}
		}
		return nil
	}
}

// profileFor picks the color profile: forced, detected from the terminal, or none.
func profileFor(cfg config) termenv.Profile {
	if cfg.color != nil {
		if *cfg.color {
			return termenv.TrueColor
		}
		return termenv.Ascii
	}
	if f, ok := cfg.out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return termenv.EnvColorProfile()
	}
	return termenv.Ascii
}

func render(v any, indent bool) string {
	var (
		data []byte
		err  error
	)
	if indent {
		data, err = json.MarshalIndent(v, "  ", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(data)
}
