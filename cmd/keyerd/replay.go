package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"keyerd/internal/config"
	"keyerd/internal/engine"
	"keyerd/internal/keyer"
	"keyerd/internal/logging"
	"keyerd/internal/output"
	"keyerd/internal/paddle"
	"keyerd/internal/store"
)

func cmdReplay(args []string) error {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	number := fs.Int("keyer", 8, "Keyer number, 0 for passthrough")
	wpm := fs.Int("wpm", 20, "Speed in words per minute")
	tail := fs.Duration("tail", time.Second, "Time to keep ticking after the last edge")
	marks := fs.Bool("marks", false, "Print every relay edge instead of spans")
	journal := fs.Bool("journal", false, "Record the result in the journal")
	configPath := fs.String("config", "", "Configuration file, used with -journal")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: keyerd replay [-keyer n] [-wpm n] [-marks] [-journal] <script|->")
		os.Exit(1)
	}

	events, err := readScript(fs.Arg(0))
	if err != nil {
		return err
	}

	log := logging.Default()
	roller := &sessionRoller{log: log}

	ecfg := engine.Config{Keyer: *number, WPM: *wpm, Logger: log}
	if *journal {
		ecfg.OnChange = roller.onChange
	}
	eng, err := engine.New(ecfg)
	if err != nil {
		return err
	}

	rec := output.NewRecorder(eng)
	sinks := []keyer.Transmitter{rec}

	if *journal {
		cfg, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		if err := cfg.EnsureDirectories(); err != nil {
			return err
		}
		st, err := store.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		sink := output.NewJournalSink(st, eng, log)
		sink.SetInline(true)
		roller.st, roller.sink = st, sink
		sinks = append(sinks, sink)
		defer roller.end()
	}
	eng.SetOutput(output.NewFanout(sinks...))

	if err := eng.Replay(events, *tail); err != nil {
		return err
	}

	if *marks {
		fmt.Print(rec.String())
	} else {
		for _, s := range rec.Spans() {
			fmt.Printf("%6d %6d %s\n", s.StartMs, s.EndMs, s.Relay)
		}
	}
	on, off := rec.TxEdges()
	fmt.Printf("symbols: %s\n", rec.Symbols())
	fmt.Printf("tx: %d on, %d off\n", on, off)
	if roller.current != "" {
		fmt.Printf("session: %s\n", roller.current)
	}
	return nil
}

func readScript(path string) ([]paddle.Event, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return paddle.ParseScript(r)
}
