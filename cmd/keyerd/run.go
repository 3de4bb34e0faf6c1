package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"keyerd/internal/config"
	"keyerd/internal/control"
	"keyerd/internal/engine"
	"keyerd/internal/health"
	"keyerd/internal/keyer"
	"keyerd/internal/logging"
	"keyerd/internal/metrics"
	"keyerd/internal/output"
	"keyerd/internal/paddle"
	"keyerd/internal/store"
)

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Configuration file (default: platform config dir)")
	number := fs.Int("keyer", -1, "Keyer number, overrides the configuration")
	wpm := fs.Int("wpm", 0, "Speed in words per minute, overrides the configuration")
	device := fs.String("device", "", "Input device, overrides the configuration")
	script := fs.String("script", "", "Play a paddle script in real time instead of reading a device")
	fs.Parse(args)

	path := *configPath
	if path == "" {
		path = config.ConfigPath()
	}
	loader := config.NewLoader(path)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	defer loader.Close()

	if *number >= 0 {
		cfg.Keyer.Number = *number
	}
	if *wpm > 0 {
		cfg.Keyer.WPM = *wpm
	}
	if *device != "" {
		cfg.Paddles.Device = *device
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer log.Close()
	logging.SetDefault(log)

	d, err := newDaemon(cfg, log)
	if err != nil {
		return err
	}
	defer d.close()

	var src paddle.Source
	switch {
	case *script != "":
		events, err := readScript(*script)
		if err != nil {
			return err
		}
		src = paddle.NewScriptSource(events)
	case cfg.Paddles.Device != "":
		m := paddle.Mapping{
			Dit:      cfg.Paddles.DitCode,
			Dah:      cfg.Paddles.DahCode,
			Straight: cfg.Paddles.StraightCode,
			Swap:     cfg.Paddles.Swap,
		}
		opts := []paddle.EvdevOption{paddle.WithLogger(log)}
		if cfg.Paddles.Grab {
			opts = append(opts, paddle.WithGrab())
		}
		src, err = paddle.NewEvdevSource(cfg.Paddles.Device, m, opts...)
		if err != nil {
			return err
		}
	default:
		log.Warn("no paddle device configured, only the control API can drive the engine")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader.OnChange(func(prev, next *config.Config) {
		d.applyConfig(ctx, prev, next)
	})
	if err := loader.Watch(); err != nil {
		log.Warn("config hot reload disabled", "error", err)
	}

	return d.run(ctx, src, loader.Errors())
}

// daemon holds the long-running pieces of "keyerd run".
type daemon struct {
	cfg     *config.Config
	log     *logging.Logger
	metrics *metrics.KeyerdMetrics
	engine  *engine.Engine
	store   *store.Store
	journal *output.JournalSink
	notes   *os.File
	server  *control.Server
	health  *health.Checker

	closeSession func()
}

func newDaemon(cfg *config.Config, log *logging.Logger) (*daemon, error) {
	d := &daemon{
		cfg:     cfg,
		log:     log,
		metrics: metrics.New(metrics.NewRegistry("keyerd")),
		health:  health.NewChecker(),
	}

	roller := &sessionRoller{log: log.WithComponent("journal")}
	ecfg := engine.Config{
		Keyer:        cfg.Keyer.Number,
		WPM:          cfg.Keyer.WPM,
		TickInterval: time.Duration(cfg.Loop.TickIntervalMs) * time.Millisecond,
		Logger:       log,
		Metrics:      d.metrics,
	}
	if cfg.Journal.Enabled {
		ecfg.OnChange = roller.onChange
	}

	eng, err := engine.New(ecfg)
	if err != nil {
		return nil, err
	}
	d.engine = eng
	d.health.RegisterFunc("engine", true, func(ctx context.Context) health.CheckResult {
		if _, err := eng.Status(ctx); err != nil {
			return health.CheckResult{Status: health.StatusUnhealthy, Message: err.Error()}
		}
		return health.CheckResult{Status: health.StatusHealthy}
	})

	var sinks []keyer.Transmitter
	sinks = append(sinks, output.NewMetricsSink(d.metrics, eng))
	if cfg.Output.LogElements {
		sinks = append(sinks, output.NewLogSink(log.WithComponent("relay"), eng))
	}

	if cfg.Output.NotesPath != "" {
		f, err := os.OpenFile(cfg.Output.NotesPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
		if err != nil {
			d.close()
			return nil, fmt.Errorf("open notes output: %w", err)
		}
		d.notes = f
		notes := output.NewNoteSink(f,
			output.WithNotes(cfg.Output.DitNote, cfg.Output.DahNote),
			output.WithNoteLogger(log.WithComponent("notes")),
			output.WithErrorHook(d.metrics.SinkErrorsTotal.Inc),
		)
		sinks = append(sinks, notes)
		d.health.RegisterFunc("notes", false, health.CounterCheck("note write errors", notes.Errors))
	}

	if cfg.Journal.Enabled {
		st, err := store.Open(cfg.Journal.Path)
		if err != nil {
			d.close()
			return nil, err
		}
		d.store = st
		d.journal = output.NewJournalSink(st, eng, log)
		roller.st, roller.sink = st, d.journal
		sinks = append(sinks, d.journal)

		journal := d.journal
		d.health.RegisterFunc("journal", false, health.PingCheck(st.Ping))
		d.health.RegisterFunc("journal_writes", false, health.CounterCheck("elements lost",
			func() uint64 { return journal.Failed() + journal.Dropped() }))
	}
	eng.SetOutput(output.NewFanout(sinks...))

	if cfg.Control.Enabled {
		var j control.Journal
		if d.store != nil {
			j = d.store
		}
		d.server = control.NewServer(cfg.Control.Addr, eng, j, d.metrics.Registry(), log)
		d.server.SetHealth(d.health)
	}
	d.closeSession = roller.end
	return d, nil
}

// run starts every component and blocks until ctx is cancelled or one of
// them fails.
func (d *daemon) run(ctx context.Context, src paddle.Source, configErrs <-chan error) error {
	if d.server != nil {
		if err := d.server.Start(); err != nil {
			return fmt.Errorf("start control API: %w", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	var events <-chan paddle.Event
	if src != nil {
		if err := src.Start(ctx); err != nil {
			if d.server != nil {
				d.server.Stop()
			}
			return fmt.Errorf("start paddle source: %w", err)
		}
		defer src.Stop()
		events = src.Events()
	}

	if d.journal != nil {
		// Not bound to ctx: it drains until Close after the engine stops.
		g.Go(func() error {
			return d.journal.Run(context.Background())
		})
	}

	g.Go(func() error {
		err := d.engine.Run(ctx, events)
		if d.journal != nil {
			d.journal.Close()
		}
		return err
	})

	if d.server != nil {
		g.Go(func() error {
			<-ctx.Done()
			return d.server.Stop()
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				d.metrics.UpdateUptime()
			case err := <-configErrs:
				d.log.Warn("config reload rejected", "error", err)
			}
		}
	})

	d.log.Info("keyerd running",
		"version", Version,
		"keyer", keyer.Name(d.cfg.Keyer.Number),
		"wpm", d.cfg.Keyer.WPM,
		"device", d.cfg.Paddles.Device,
	)

	err := g.Wait()
	if d.closeSession != nil && d.store != nil {
		d.closeSession()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	d.log.Info("keyerd stopped")
	return nil
}

// applyConfig pushes keyer and speed changes from a reloaded configuration
// into the running engine. Other sections need a restart.
func (d *daemon) applyConfig(ctx context.Context, prev, next *config.Config) {
	if next.Keyer.Number != prev.Keyer.Number {
		if err := d.engine.Select(ctx, next.Keyer.Number); err != nil {
			d.log.Error("apply keyer from config", "error", err)
		}
	}
	if next.Keyer.WPM != prev.Keyer.WPM {
		if err := d.engine.SetWPM(ctx, next.Keyer.WPM); err != nil {
			d.log.Error("apply speed from config", "error", err)
		}
	}
	if next.Paddles != prev.Paddles || next.Output != prev.Output || next.Journal != prev.Journal || next.Control != prev.Control {
		d.log.Warn("config change needs a restart to take effect")
	}
}

func (d *daemon) close() {
	if d.notes != nil {
		d.notes.Close()
	}
	if d.store != nil {
		d.store.Close()
	}
}
