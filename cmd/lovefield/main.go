package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jessevdk/go-flags"

	lovefield "github.com/ghchinoy/lovefield"
	"github.com/ghchinoy/lovefield/query"
	"github.com/ghchinoy/lovefield/row"
	"github.com/ghchinoy/lovefield/schema"
	"github.com/ghchinoy/lovefield/store"
	"github.com/ghchinoy/lovefield/util"
)

var version string

type cliOptions struct {
	Schema  string `short:"s" long:"schema" description:"Path to the schema YAML file" required:"true"`
	Store   string `long:"store" description:"Backing store: memory or sqlite" default:"memory"`
	DBFile  string `long:"db-file" description:"Path to the sqlite database file" default:"lovefield.db"`
	Help    bool   `long:"help" description:"Show this help"`
	Version bool   `long:"version" description:"Show this version"`
}

func parseOptions(args []string) (cliOptions, error) {
	var opts cliOptions
	parser := flags.NewParser(&opts, flags.None)
	parser.Usage = "[option...]"
	if _, err := parser.ParseArgs(args); err != nil {
		return opts, err
	}
	if opts.Help {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if opts.Version {
		fmt.Println(version)
		os.Exit(0)
	}
	return opts, nil
}

func main() {
	util.InitSlog()

	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		slog.Error("parsing options", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	schemaBytes, err := os.ReadFile(opts.Schema)
	if err != nil {
		slog.Error("reading schema file", "path", opts.Schema, "error", err)
		os.Exit(1)
	}
	sc, err := schema.Load(schemaBytes)
	if err != nil {
		slog.Error("loading schema", "error", err)
		os.Exit(1)
	}

	adapter, err := openAdapter(opts.Store, opts.DBFile)
	if err != nil {
		slog.Error("opening backing store", "store", opts.Store, "error", err)
		os.Exit(1)
	}

	db, err := lovefield.Open(ctx, sc, adapter, 4)
	if err != nil {
		slog.Error("opening database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	runDemo(ctx, db, sc)
}

func openAdapter(kind, dbFile string) (store.Adapter, error) {
	switch kind {
	case "sqlite":
		return store.NewSQLite(dbFile)
	default:
		return store.NewMemory(), nil
	}
}

// runDemo exercises the builder DSL end to end against the schema's first
// table in name order: a row insert, then a full scan whose rows are
// printed one per line.
func runDemo(ctx context.Context, db *lovefield.Database, sc *schema.Schema) {
	tables := sc.Tables()
	if len(tables) == 0 {
		slog.Warn("schema declares no tables, nothing to demo")
		return
	}
	t := tables[0]

	sample := row.Payload{}
	for _, col := range t.Columns {
		sample[col.Name] = demoValue(col.Type)
	}

	if _, err := query.InsertInto(db, t.Name).Values(sample).Exec(ctx); err != nil {
		slog.Error("demo insert failed", "table", t.Name, "error", err)
		return
	}

	result, err := query.Select(db).From(t.Name).Exec(ctx)
	if err != nil {
		slog.Error("demo select failed", "table", t.Name, "error", err)
		return
	}

	fmt.Printf("%s (%d rows)\n", t.Name, result.Len())
	for _, e := range result.Entries() {
		fields := make(map[string]string, len(t.Columns))
		for _, col := range t.Columns {
			if v, ok := e.Get(t.Name, col.Name); ok {
				fields[col.Name] = v.String()
			}
		}
		fmt.Printf("  %v\n", fields)
	}
}

func demoValue(t schema.ColumnType) row.Value {
	switch t {
	case schema.TypeInteger:
		return row.Integer(1)
	case schema.TypeNumber:
		return row.Number(1.0)
	case schema.TypeString:
		return row.String("demo")
	case schema.TypeBoolean:
		return row.Boolean(true)
	default:
		return row.Null
	}
}
