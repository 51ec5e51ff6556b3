package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/mstid/internal/config"
	"github.com/banshee-data/mstid/internal/monitoring"
)

var errUsage = errors.New("usage")

func main() {
	flag.Usage = func() { printUsage(os.Stderr) }
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage(os.Stderr)
		os.Exit(1)
	}
	if config.GetEnvBool(config.EnvQuiet, false) {
		monitoring.SetLogger(nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := dispatch(ctx, flag.Arg(0), flag.Args()[1:], os.Stdout)
	stop()
	if errors.Is(err, errUsage) {
		printUsage(os.Stderr)
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s: %v", flag.Arg(0), err)
	}
}

func dispatch(ctx context.Context, command string, args []string, w io.Writer) error {
	switch command {
	case "init":
		return handleInit(args, w)
	case "run":
		return handleRun(ctx, args, w)
	case "batch":
		return handleBatch(ctx, args, w)
	case "status":
		return handleStatus(args, w)
	case "migrate":
		return handleMigrate(args, w)
	case "version":
		return handleVersion(w)
	case "help":
		printUsage(w)
		return nil
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		return errUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `music - MSTID MUSIC batch processor

Usage: music <command> [options]

Commands:
  init       Write pending-run files for one event or a YAML manifest
  run        Process one event (from flags or an init file)
  batch      Process every pending-run file in a directory
  status     Show the completed level of an event
  migrate    Manage the run-summary store schema
  version    Show build information
  help       Show this help message

Environment:
  MSTID_STORE_PATH        Directory holding the run-summary store
  MSTID_WORKERS           Default worker count for batch
  MSTID_INIT_PARAMS_DIR   Default pending-run directory
  MSTID_QUIET             Mute diagnostic logging

Examples:
  music init -events events.yaml -config run.json -clear
  music batch -workers 4 -resume skip
  music run -site bks -start "2012-12-01 14:00" -end "2012-12-01 16:00" -synthetic
  music status -site bks -start "2012-12-01 14:00" -end "2012-12-01 16:00"
  music migrate status`)
}
