package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/relite/internal/config"
	"github.com/aretw0/relite/pkg/devtool"
	"github.com/aretw0/relite/pkg/domain"
	"github.com/aretw0/relite/pkg/logger"
	"github.com/aretw0/relite/pkg/model"
	"github.com/aretw0/relite/pkg/observability"
	"github.com/aretw0/relite/pkg/ports"
	"github.com/aretw0/relite/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
)

// Counter is the state of the demo counter store.
type Counter struct {
	Count int `json:"count"`
}

// Todos is the state of the demo todo store.
type Todos struct {
	Items map[string]bool `json:"items"`
}

// NewCounterModel describes the demo counter.
func NewCounterModel(opts ...store.Option) (*model.Model[Counter], error) {
	return model.New(store.ActionTable[Counter]{
		"increment": store.Reducer(func(s Counter, _ any) Counter {
			return Counter{Count: s.Count + 1}
		}),
		"decrement": store.Reducer(func(s Counter, _ any) Counter {
			return Counter{Count: s.Count - 1}
		}),
		"add": func(d *store.Draft[Counter], payload any) error {
			n, err := number(payload)
			if err != nil {
				return err
			}
			d.Replace(Counter{Count: d.Current().Count + n})
			return nil
		},
	}, Counter{}, append([]store.Option{store.WithName("counter")}, opts...)...)
}

// NewTodosModel describes the demo todo list.
func NewTodosModel(opts ...store.Option) (*model.Model[Todos], error) {
	return model.New(store.ActionTable[Todos]{
		"add": store.Mutator(func(d *store.Draft[Todos], name string) error {
			return d.SetIn(false, "Items", name)
		}),
		"toggle": store.Mutator(func(d *store.Draft[Todos], name string) error {
			if _, ok := d.GetIn("Items", name); !ok {
				return fmt.Errorf("unknown todo %q", name)
			}
			return d.UpdateIn(func(cur any) any { return !cur.(bool) }, "Items", name)
		}),
		"remove": store.Mutator(func(d *store.Draft[Todos], name string) error {
			return d.DeleteIn("Items", name)
		}),
	}, Todos{Items: map[string]bool{}}, append([]store.Option{store.WithName("todos")}, opts...)...)
}

// number accepts the integer forms a payload takes locally and after a JSON round trip.
func number(payload any) (int, error) {
	switch n := payload.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	case nil:
		return 1, nil
	default:
		return 0, fmt.Errorf("%w: got %T, want a number", domain.ErrPayloadType, payload)
	}
}

// DemoOptions configures the demo process.
type DemoOptions struct {
	Config   config.Config
	Logger   *slog.Logger
	Out      io.Writer
	Steps    int // 0 runs until ctx is cancelled
	Interval time.Duration
	// Verbose prints every change record.
	Verbose  bool
	Registry prometheus.Registerer
	// Extension overrides the transport selected by Config.
	Extension ports.Extension
}

// RunDemo drives a counter and a todo list attached to the devtool bridge, so
// an inspector has something to look at.
func RunDemo(ctx context.Context, opts DemoOptions) error {
	log := opts.Logger
	cfg := opts.Config
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}

	ext := opts.Extension
	if ext == nil {
		var (
			closeExt func() error
			err      error
		)
		ext, closeExt, err = NewExtension(cfg, log)
		if err != nil {
			return err
		}
		defer closeExt()
	}

	bridge := devtool.New(ext,
		devtool.WithEnabled(cfg.DevTool.Enabled),
		devtool.WithMode(devtool.ParseMode(cfg.DevTool.Mode)),
		devtool.WithLogger(log),
		devtool.WithConnectTimeout(cfg.DevTool.ConnectTimeout.Std()),
		devtool.WithInstanceName(cfg.DevTool.Name),
		devtool.WithMaxAge(cfg.DevTool.MaxAge),
	)
	defer bridge.Close()

	counterModel, err := NewCounterModel(store.WithLogger(log))
	if err != nil {
		return err
	}
	todosModel, err := NewTodosModel(store.WithLogger(log))
	if err != nil {
		return err
	}

	storage, err := model.NewStorage(
		model.WithDevTool(bridge),
		model.WithLogger(log),
		model.WithPreload(model.Preload(counterModel), model.Preload(todosModel)),
	)
	if err != nil {
		return err
	}

	metrics, err := observability.NewMetrics(opts.Registry)
	if err != nil {
		return err
	}
	defer metrics.ObserveStorage(storage, "demo")()

	if opts.Verbose {
		defer storage.Subscribe(logger.New[any](logger.WithWriter(opts.Out), logger.WithTitle("[demo]")))()
	}

	counter, err := model.GetStore(storage, counterModel)
	if err != nil {
		return err
	}
	todos, err := model.GetStore(storage, todosModel)
	if err != nil {
		return err
	}

	printSystemMessage(opts.Out, "Demo running with stores %v (devtool %s).", storage.Names(), bridge.Mode())

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for step := 1; opts.Steps == 0 || step <= opts.Steps; step++ {
		select {
		case <-ctx.Done():
			printSystemMessage(opts.Out, "Demo stopped at count %d.", counter.GetState().Count)
			return nil
		case <-ticker.C:
		}

		if err := demoStep(counter, todos, step); err != nil {
			if errors.Is(err, domain.ErrListener) {
				metrics.CountFailure("demo")
				log.Warn("Listener failed", "step", step, "err", err)
				continue
			}
			if errors.Is(err, domain.ErrReentrantDispatch) {
				// An inspector command is being applied; retry on the next tick.
				log.Debug("Dispatch busy", "step", step)
				continue
			}
			return err
		}
	}

	printSystemMessage(opts.Out, "Demo finished at count %d.", counter.GetState().Count)
	return nil
}

func demoStep(counter *store.Store[Counter], todos *store.Store[Todos], step int) error {
	if _, err := counter.Dispatch("increment", nil); err != nil {
		return err
	}
	name := fmt.Sprintf("task-%d", (step+2)/3)
	switch step % 3 {
	case 1:
		_, err := todos.Dispatch("add", name)
		return err
	case 2:
		_, err := todos.Dispatch("toggle", name)
		return err
	}
	return nil
}
