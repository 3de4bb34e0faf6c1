// keyerd - Morse keyer daemon
//
// keyerd reads paddle edges from an input device, runs them through one of
// nine keying modes and drives relay outputs:
//
//	keyerd run              Run the keyer daemon
//	keyerd replay <script>  Run a paddle script on a simulated clock
//	keyerd keyers           List the selectable keyers
//	keyerd devices          List input devices
//	keyerd sessions         Show journaled sessions
//	keyerd status           Query a running daemon
//	keyerd init             Write the default configuration
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"keyerd/internal/config"
	"keyerd/internal/engine"
	"keyerd/internal/logging"
	"keyerd/internal/paddle"
	"keyerd/internal/store"
)

// Version is set at build time.
var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch cmd := os.Args[1]; cmd {
	case "run":
		err = cmdRun(os.Args[2:])
	case "replay":
		err = cmdReplay(os.Args[2:])
	case "keyers":
		cmdKeyers()
	case "devices":
		err = cmdDevices()
	case "sessions":
		err = cmdSessions(os.Args[2:])
	case "status":
		err = cmdStatus(os.Args[2:])
	case "init":
		err = cmdInit(os.Args[2:])
	case "version":
		fmt.Println("keyerd", Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`keyerd - Morse keyer daemon

USAGE:
    keyerd <command> [options]

COMMANDS:
    run                 Run the keyer daemon
    replay <script>     Replay a paddle script and print the relay timeline
    keyers              List the selectable keyers
    devices             List input devices with key capabilities
    sessions            Show journaled sessions
    status              Query a running daemon's control API
    init                Write the default configuration file
    version             Print the version
    help                Show this help message

SCRIPT FORMAT:
    One edge per line: <ms> <paddle> <down|up>
    e.g. "120 dah down". Times are milliseconds from the script start.
    Paddles are dit, dah and straight. Text after # is ignored.

ENVIRONMENT:
    KEYERD_DATA_DIR      Data directory
    KEYERD_KEYER         Keyer number override
    KEYERD_WPM           Speed override
    KEYERD_DEVICE        Input device override
    KEYERD_LOG_LEVEL     Log level override
    KEYERD_CONTROL_ADDR  Control API address override`)
}

// newLogger builds the process logger from the logging section.
func newLogger(lc config.LoggingConfig) (*logging.Logger, error) {
	level, err := logging.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(lc.Format)
	if err != nil {
		return nil, err
	}

	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Format = format
	cfg.Output = lc.Output
	cfg.FilePath = lc.FilePath
	cfg.MaxSize = int64(lc.MaxSizeMB)
	cfg.MaxBackups = lc.MaxBackups
	cfg.MaxAge = lc.MaxAgeDays
	cfg.Compress = lc.Compress
	return logging.New(cfg)
}

func cmdKeyers() {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NUMBER\tNAME")
	for _, k := range engine.Keyers() {
		fmt.Fprintf(w, "%d\t%s\n", k.Number, k.Name)
	}
	w.Flush()
}

func cmdDevices() error {
	devices, err := paddle.ListDevices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("No input devices with keys found.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tNAME")
	for _, d := range devices {
		fmt.Fprintf(w, "%s\t%s\n", d.Path, d.Name)
	}
	return w.Flush()
}

func cmdSessions(args []string) error {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	configPath := fs.String("config", "", "Configuration file")
	limit := fs.Int("n", 20, "Number of sessions to show, 0 for all")
	id := fs.String("id", "", "Show the elements of one session")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	if *id != "" {
		return printSession(st, *id)
	}

	sessions, err := st.Sessions(*limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKEYER\tWPM\tSTARTED\tENDED")
	for _, s := range sessions {
		ended := "-"
		if s.EndedNs != nil {
			ended = time.Unix(0, *s.EndedNs).Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			s.ID, keyerLabel(s.Keyer), s.WPM,
			time.Unix(0, s.StartedNs).Format(time.DateTime), ended)
	}
	return w.Flush()
}

func printSession(st *store.Store, id string) error {
	stats, err := st.SessionStats(id)
	if err != nil {
		return err
	}
	if stats == nil {
		return fmt.Errorf("no session %s", id)
	}
	fmt.Printf("Session:   %s\n", stats.SessionID)
	fmt.Printf("Elements:  %d (dit %d, dah %d)\n", stats.Elements, stats.ByPaddle["dit"], stats.ByPaddle["dah"])
	fmt.Printf("Key down:  %d ms\n", stats.KeyDownMs)

	elems, err := st.Elements(id)
	if err != nil {
		return err
	}
	for _, e := range elems {
		fmt.Printf("%8d %8d %s\n", e.StartMs, e.EndMs, e.Paddle)
	}
	return nil
}

func keyerLabel(n int) string {
	for _, k := range engine.Keyers() {
		if k.Number == n {
			return fmt.Sprintf("%d (%s)", n, k.Name)
		}
	}
	return fmt.Sprint(n)
}

func cmdStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "", "Configuration file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + cfg.Control.Addr + "/api/keyer")
	if err != nil {
		return fmt.Errorf("daemon not reachable at %s: %w", cfg.Control.Addr, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned %s", resp.Status)
	}

	var st engine.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}
	fmt.Printf("Keyer:        %d (%s)\n", st.Number, st.Name)
	fmt.Printf("Speed:        %d wpm, dit %d ms\n", st.WPM, st.DitMs)
	fmt.Printf("Transmitting: %v\n", st.Transmitting)
	return nil
}

func cmdInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", config.ConfigPath(), "Configuration file to create")
	force := fs.Bool("force", false, "Overwrite an existing file")
	fs.Parse(args)

	if !*force {
		if _, err := os.Stat(*configPath); err == nil {
			return errors.New("config exists, use -force to overwrite: " + *configPath)
		}
	}

	cfg := config.DefaultConfig()
	if err := config.SaveConfig(cfg, *configPath); err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", *configPath)
	return nil
}
