package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aretw0/relite/internal/config"
	"github.com/aretw0/relite/internal/logging"
	"github.com/aretw0/relite/pkg/adapters/memory"
	"github.com/aretw0/relite/pkg/adapters/redis"
	"github.com/aretw0/relite/pkg/adapters/websocket"
	"github.com/aretw0/relite/pkg/ports"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// Unlike signal.NotifyContext it allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sc.sigCh)
		select {
		case sig := <-sc.sigCh:
			sc.mu.Lock()
			sc.sigVal = sig
			sc.mu.Unlock()
			sc.Cancel()
		case <-sc.Context.Done():
		}
	}()

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// GlobalOptions are the persistent flags shared by every command.
type GlobalOptions struct {
	ConfigPath string
	LogLevel   string // overrides log.level when set
	Debug      bool
}

// Setup loads the configuration and builds the application logger.
func Setup(opts GlobalOptions) (config.Config, *slog.Logger, error) {
	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}

	levelName := cfg.Log.Level
	if opts.LogLevel != "" {
		levelName = opts.LogLevel
	}
	if opts.Debug {
		levelName = "debug"
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logging.New(level, cfg.Log.Format), nil
}

// NewExtension builds the devtool transport selected by cfg.
// The returned closer releases transport resources shared by all connections.
func NewExtension(cfg config.Config, logger *slog.Logger) (ports.Extension, func() error, error) {
	nop := func() error { return nil }

	switch cfg.DevTool.Transport {
	case "", "websocket":
		return websocket.NewExtension(cfg.DevTool.URL, websocket.WithLogger(logger)), nop, nil
	case "redis":
		ext := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithLogger(logger),
		)
		return ext, ext.Close, nil
	case "memory":
		return memory.NewExtension(), nop, nil
	default:
		return nil, nil, fmt.Errorf("unknown devtool transport %q", cfg.DevTool.Transport)
	}
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}
