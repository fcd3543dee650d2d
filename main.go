package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/mempooledit/mempooledit/infrastructure/logger"
	"github.com/mempooledit/mempooledit/mempoolfile"
	"github.com/mempooledit/mempooledit/tui"
	"github.com/mempooledit/mempooledit/util/panics"
	"github.com/mempooledit/mempooledit/util/profiling"
	"github.com/mempooledit/mempooledit/version"
)

func main() {
	defer panics.HandlePanic(log, nil)

	cfg, err := parseConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing command-line arguments: %s\n", err)
		os.Exit(1)
	}

	// Show version at startup.
	log.Infof("Version %s", version.Version())

	// Enable http profiling server if requested.
	if cfg.Profile != "" {
		profiling.Start(cfg.Profile, log)
	}

	// The editor takes over the terminal, so refuse to start without one.
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "mempooledit is interactive and must be run from a terminal")
		os.Exit(1)
	}

	snapshot, err := mempoolfile.Load(cfg.Input)
	if err != nil {
		log.Errorf("Error loading snapshot: %+v", err)
		fmt.Fprintf(os.Stderr, "Error loading %s: %s\n", cfg.Input, err)
		os.Exit(1)
	}
	log.Infof("Loaded %d entries, %d fee deltas and %d unbroadcast IDs from %s",
		len(snapshot.Entries), snapshot.Deltas.Len(), snapshot.Unbroadcast.Len(), cfg.Input)

	app := tui.New(snapshot, cfg.Output)
	err = app.Run()
	if err != nil {
		panic(errors.Wrap(err, "error running the editor"))
	}

	logger.BackendLog().Close()
}
