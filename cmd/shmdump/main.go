// Command shmdump is a one-shot read-only consumer of a shmop metrics
// store, standing in for an external agent (e.g. a PMDA) that reads
// the store without owning its registry. It opens the rendezvous
// file's segment pair read-only, walks the index, and prints each
// physical metric's identifier triple and current value.
//
// Grounded on cmd/tk/main.go's minimal-main shape and
// internal/cli/cmd_ls.go's pflag.FlagSet usage.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/messagemedia/shmop/internal/codec"
	"github.com/messagemedia/shmop/internal/indexmgr"
	"github.com/messagemedia/shmop/internal/rendezvous"
	"github.com/messagemedia/shmop/internal/rflock"
	"github.com/messagemedia/shmop/internal/segment"
	"github.com/messagemedia/shmop/internal/shm"
	"github.com/messagemedia/shmop/pkg/logger"
)

type dumpOptions struct {
	name       string
	identifier string
	dir        string
	version    uint32
	asJSON     bool
}

func parseFlags(args []string) (dumpOptions, int) {
	flagSet := flag.NewFlagSet("shmdump", flag.ContinueOnError)
	flagSet.SetOutput(discardWriter{})

	name := flagSet.String("name", "", "metrics store name (required)")
	identifier := flagSet.String("identifier", "", "rendezvous file identifier (required)")
	dir := flagSet.String("dir", rendezvous.DefaultDir, "rendezvous file directory")
	version := flagSet.Uint32("version", 1, "expected header version")
	asJSON := flagSet.Bool("json", false, "emit JSON instead of text")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			printHelp(flagSet)
			return dumpOptions{}, 0
		}
		fmt.Fprintln(os.Stderr, err)
		return dumpOptions{}, 2
	}

	if *name == "" || *identifier == "" {
		fmt.Fprintln(os.Stderr, "shmdump: --name and --identifier are required")
		printHelp(flagSet)
		return dumpOptions{}, 2
	}

	return dumpOptions{
		name: *name, identifier: *identifier, dir: *dir, version: *version, asJSON: *asJSON,
	}, -1
}

func printHelp(flagSet *flag.FlagSet) {
	fmt.Fprintln(os.Stdout, "usage: shmdump --name NAME --identifier ID [--dir DIR] [--version N] [--json]")
	flagSet.PrintDefaults()
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

type record struct {
	Cluster  uint16 `json:"cluster"`
	Item     uint16 `json:"item"`
	Instance int32  `json:"instance"`
	Type     string `json:"type"`
	Value    uint32 `json:"value"`
}

func main() {
	opts, exitCode := parseFlags(os.Args[1:])
	if exitCode >= 0 {
		os.Exit(exitCode)
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "shmdump:", err)
		os.Exit(1)
	}
	defer zapLogger.Sync() //nolint:errcheck // best-effort flush on exit

	records, err := dump(opts, logger.NewFromZap(zapLogger))
	if err != nil {
		fmt.Fprintln(os.Stderr, "shmdump:", err)
		os.Exit(1)
	}

	if opts.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			fmt.Fprintln(os.Stderr, "shmdump:", err)
			os.Exit(1)
		}
		return
	}

	for _, r := range records {
		fmt.Printf("cluster=%d item=%d instance=%d type=%s value=%d\n", r.Cluster, r.Item, r.Instance, r.Type, r.Value)
	}
}

func dump(opts dumpOptions, log logger.Logger) ([]record, error) {
	path := rendezvous.Path(opts.dir, opts.name, opts.identifier)

	pair, err := segment.OpenOrCreate(shm.NewSysV(), path, 0, false)
	if err != nil {
		return nil, fmt.Errorf("open segments: %w", err)
	}
	defer pair.Close()

	lock := rflock.New(path)
	mgr := indexmgr.New(pair, lock, opts.version, log)

	if err := mgr.Initialize(false); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	entries, err := mgr.ListEntries()
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	records := make([]record, 0, len(entries))

	for _, e := range entries {
		buf, err := pair.Data.ReadAt(e.Offset, e.Length)
		if err != nil {
			return nil, fmt.Errorf("read data at %d: %w", e.Offset, err)
		}

		records = append(records, record{
			Cluster: e.Cluster, Item: e.Item, Instance: e.Instance,
			Type: string(rune(e.Type)), Value: codec.Uint32(buf, 0),
		})
	}

	return records, nil
}
