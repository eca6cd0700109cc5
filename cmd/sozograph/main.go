// Command sozograph runs the passport pipeline from the shell: ingest raw
// objects or transcripts into a passport file, and export the bounded
// context string.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"github.com/alecthomas/kong"
	"github.com/itchyny/gojq"
	"github.com/joho/godotenv"

	"github.com/sozolabs/sozograph"
	"github.com/sozolabs/sozograph/internal/ingest"
	. "github.com/sozolabs/sozograph/internal/logging"
	"github.com/sozolabs/sozograph/passport"
)

var version = "dev"

type cli struct {
	Config  string `help:"Path to TOML config file." type:"existingfile" optional:""`
	Verbose bool   `short:"v" help:"Enable debug logging."`

	Ingest  ingestCmd  `cmd:"" help:"Ingest a transcript or raw object into a passport."`
	Export  exportCmd  `cmd:"" help:"Render the bounded context string from a passport."`
	Version versionCmd `cmd:"" help:"Print the version."`
}

type ingestCmd struct {
	Passport string `arg:"" help:"Passport JSON file (created if missing)."`
	In       string `help:"Input JSON file; '-' for stdin." default:"-"`
	Text     string `help:"Ingest a literal transcript string instead of --in."`
	Hint     string `help:"Shape hint: kv-tree, relational, document-store."`
	Select   string `help:"gojq expression applied to the input before ingestion."`
	Source   string `help:"Source pointer recorded in provenance."`
	SQLite   string `help:"Ingest rows from a SQLite database file instead of --in."`
	Table    string `help:"Table to read when --sqlite is set."`
	Markdown string `help:"Ingest markdown notes from a directory instead of --in."`
}

type exportCmd struct {
	Passport string `arg:"" help:"Passport JSON file." type:"existingfile"`
	Budget   int    `help:"Character budget." default:"0"`
	Header   string `help:"Header line override."`
}

type versionCmd struct{}

func main() {
	godotenv.Load()

	var c cli
	kctx := kong.Parse(&c,
		kong.Name("sozograph"),
		kong.Description("Portable cognitive passport pipeline."),
		kong.UsageOnError(),
	)

	cfg, err := loadConfig(c.Config, c.Verbose)
	if err != nil {
		L_fatal("config load failed", "error", err)
	}

	if err := kctx.Run(&cfg); err != nil {
		L_fatal("command failed", "error", err)
	}
}

// loadConfig layers env config under an optional TOML file.
func loadConfig(path string, verbose bool) (sozograph.Config, error) {
	cfg := sozograph.ConfigFromEnv()

	if path != "" {
		var fileCfg sozograph.Config
		if _, err := toml.DecodeFile(path, &fileCfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		if err := mergo.Merge(&cfg, fileCfg, mergo.WithOverride); err != nil {
			return cfg, fmt.Errorf("merge config: %w", err)
		}
	}

	if cfg.Logging == nil {
		cfg.Logging = DefaultConfig()
	}
	if verbose {
		cfg.Logging.Level = LevelDebug
	}
	Init(cfg.Logging)
	return cfg, nil
}

func (cmd *ingestCmd) Run(cfg *sozograph.Config) error {
	graph, err := sozograph.New(*cfg)
	if err != nil {
		return err
	}

	p, err := loadPassport(cmd.Passport)
	if err != nil {
		return err
	}

	ctx := context.Background()

	switch {
	case cmd.SQLite != "":
		if cmd.Table == "" {
			return fmt.Errorf("--table is required with --sqlite")
		}
		src := ingest.NewSQLiteSource(cmd.SQLite, cmd.Table, "")
		if _, err := graph.IngestSource(ctx, p, src); err != nil {
			return err
		}

	case cmd.Markdown != "":
		src := ingest.NewMarkdownSource(cmd.Markdown, nil, nil)
		if _, err := graph.IngestSource(ctx, p, src); err != nil {
			return err
		}

	default:
		data, err := cmd.readInput()
		if err != nil {
			return err
		}

		meta := map[string]any{}
		if cmd.Source != "" {
			meta["source"] = cmd.Source
		}

		stats, interactions, err := graph.Ingest(ctx, p, data, cmd.Hint, meta)
		if err != nil {
			return err
		}
		L_info("ingested", "interactions", len(interactions), "merges", len(stats))
	}

	return savePassport(cmd.Passport, p)
}

// readInput produces the raw value to ingest: a literal transcript, or JSON
// from a file or stdin, optionally narrowed with a gojq expression.
func (cmd *ingestCmd) readInput() (any, error) {
	if cmd.Text != "" {
		return cmd.Text, nil
	}

	var raw []byte
	var err error
	if cmd.In == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(cmd.In)
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		// Not JSON: treat as a transcript.
		return string(raw), nil
	}

	if cmd.Select != "" {
		return applySelect(cmd.Select, data)
	}
	return data, nil
}

// applySelect runs a gojq expression over the input. Multiple outputs become
// a list; zero outputs is an error.
func applySelect(expr string, data any) (any, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse --select expression: %w", err)
	}

	var out []any
	iter := query.Run(data)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, fmt.Errorf("apply --select expression: %w", err)
		}
		out = append(out, v)
	}

	switch len(out) {
	case 0:
		return nil, fmt.Errorf("--select expression produced no output")
	case 1:
		return out[0], nil
	default:
		return out, nil
	}
}

func (cmd *exportCmd) Run(cfg *sozograph.Config) error {
	p, err := loadPassport(cmd.Passport)
	if err != nil {
		return err
	}

	budget := cmd.Budget
	if budget == 0 {
		budget = cfg.ContextBudget
	}

	graph := sozograph.NewWithProvider(*cfg, nil)
	fmt.Println(graph.ExportContext(p, budget, cmd.Header))
	return nil
}

func (cmd *versionCmd) Run(cfg *sozograph.Config) error {
	fmt.Printf("sozograph %s\n", version)
	return nil
}

func loadPassport(path string) (*passport.Passport, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return passport.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read passport: %w", err)
	}

	p, err := passport.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse passport %s: %w", path, err)
	}
	return p, nil
}

func savePassport(path string, p *passport.Passport) error {
	data, err := p.Marshal()
	if err != nil {
		return fmt.Errorf("marshal passport: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write passport: %w", err)
	}
	L_info("passport saved", "path", path)
	return nil
}
