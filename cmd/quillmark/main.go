package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/nibsbin/quillmark/internal"
	"github.com/nibsbin/quillmark/internal/models"
	"github.com/nibsbin/quillmark/internal/registry"
	"github.com/nibsbin/quillmark/internal/storage"
	"github.com/nibsbin/quillmark/pkg/backend"
	"github.com/nibsbin/quillmark/pkg/backend/html"
	pkgconfig "github.com/nibsbin/quillmark/pkg/config"
	"github.com/nibsbin/quillmark/pkg/engine"
	"github.com/nibsbin/quillmark/pkg/parse"
	"github.com/nibsbin/quillmark/pkg/quill"
)

func main() {
	cmd := &cli.Command{
		Name:  "quillmark",
		Usage: "Markdown document pipeline: parse extended markdown, compose glue templates, render artifacts",
		Commands: []*cli.Command{
			parseCommand(),
			renderCommand(),
			schemaCommand(),
			quillsCommand(),
			serveCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "quillmark: %v\n", err)
		os.Exit(1)
	}
}

func quillsDirFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "quills",
		Usage:   "Directory holding quill bundles",
		Value:   "./quills",
		Sources: cli.EnvVars("QUILLMARK_QUILLS_DIR"),
	}
}

func parseCommand() *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "Parse an extended markdown document and print its JSON form",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "compact",
				Usage: "Emit compact JSON instead of indented",
			},
		},
		Action: runParse,
	}
}

func runParse(_ context.Context, cmd *cli.Command) error {
	data, err := readInput(cmd.Args().First())
	if err != nil {
		return err
	}
	doc, err := parse.Parse(string(data))
	if err != nil {
		return err
	}
	return writeJSON(os.Stdout, doc, cmd.Bool("compact"))
}

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Render a document through its quill into output artifacts",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			quillsDirFlag(),
			&cli.StringFlag{
				Name:  "quill",
				Usage: "Quill to render with (overrides the document's QUILL tag)",
			},
			&cli.StringFlag{
				Name:    "default-quill",
				Usage:   "Quill used when the document carries no QUILL tag",
				Sources: cli.EnvVars("QUILLMARK_DEFAULT_QUILL"),
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format (html or text); backend default when empty",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the first artifact to this file instead of stdout",
			},
			&cli.StringSliceFlag{
				Name:  "asset",
				Usage: "Attach a render asset as name=path (repeatable)",
			},
		},
		Action: runRender,
	}
}

func runRender(ctx context.Context, cmd *cli.Command) error {
	data, err := readInput(cmd.Args().First())
	if err != nil {
		return err
	}
	doc, err := parse.Parse(string(data))
	if err != nil {
		return err
	}

	eng, err := loadEngine(cmd.String("quills"), cmd.String("default-quill"))
	if err != nil {
		return err
	}

	var wf *engine.Workflow
	if name := cmd.String("quill"); name != "" {
		wf, err = eng.Workflow(name)
	} else {
		var q *quill.Quill
		if q, err = eng.ResolveQuill(doc); err == nil {
			wf, err = eng.WorkflowFromQuill(q)
		}
	}
	if err != nil {
		return err
	}

	var opts []engine.RenderOption
	if f := cmd.String("format"); f != "" {
		opts = append(opts, engine.RenderWithFormat(backend.OutputFormat(f)))
	}
	for _, spec := range cmd.StringSlice("asset") {
		name, path, ok := strings.Cut(spec, "=")
		if !ok {
			return fmt.Errorf("asset %q: want name=path", spec)
		}
		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return fmt.Errorf("asset %s: %w", name, readErr)
		}
		opts = append(opts, engine.RenderWithAsset(name, content))
	}

	res, err := wf.Render(ctx, doc, opts...)
	if err != nil {
		return err
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", warn)
	}
	if len(res.Artifacts) == 0 {
		return fmt.Errorf("backend produced no artifacts")
	}

	art := res.Artifacts[0]
	if out := cmd.String("output"); out != "" {
		if err := storage.WriteFileAtomic(out, art.Bytes); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %s (%d bytes, %s)\n", out, len(art.Bytes), art.Format)
		return nil
	}
	_, err = os.Stdout.Write(art.Bytes)
	return err
}

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Print a quill's field schema as JSON",
		Flags: []cli.Flag{
			quillsDirFlag(),
			&cli.StringFlag{
				Name:     "quill",
				Usage:    "Quill name",
				Required: true,
			},
		},
		Action: runSchema,
	}
}

func runSchema(_ context.Context, cmd *cli.Command) error {
	eng, err := loadEngine(cmd.String("quills"), "")
	if err != nil {
		return err
	}
	name := cmd.String("quill")
	q, ok := eng.Quill(name)
	if !ok {
		return fmt.Errorf("quill not found: %s", name)
	}
	data, err := q.SchemaJSON()
	if err != nil {
		return err
	}
	_, err = fmt.Println(string(data))
	return err
}

func quillsCommand() *cli.Command {
	return &cli.Command{
		Name:  "quills",
		Usage: "List quills registered in the catalog",
		Flags: []cli.Flag{
			quillsDirFlag(),
			&cli.StringFlag{
				Name:    "db",
				Usage:   "SQLite catalog path",
				Value:   "./quillmark.db",
				Sources: cli.EnvVars("QUILLMARK_DB"),
			},
			&cli.StringFlag{
				Name:  "search",
				Usage: "Full-text filter over name, backend and description",
			},
		},
		Action: runQuills,
	}
}

func runQuills(_ context.Context, cmd *cli.Command) error {
	db, err := registry.Open(cmd.String("db"))
	if err != nil {
		return err
	}
	defer db.Close()

	// Refresh the catalog from disk so listings reflect current bundles.
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := registry.Sync(db, cmd.String("quills"), quiet); err != nil {
		fmt.Fprintf(os.Stderr, "warning: catalog sync failed: %v\n", err)
	}

	var rows []models.QuillInfo
	if q := cmd.String("search"); q != "" {
		rows, err = db.Search(q, 50)
	} else {
		rows, err = db.List()
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tBACKEND\tDESCRIPTION")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, r.Backend, r.Description)
	}
	return tw.Flush()
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the quillmark service (HTTP API, catalog watcher, optional MCP)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("QUILLMARK_CONFIG_FILE"),
			},
			&cli.IntFlag{
				Name:    "port",
				Usage:   "HTTP listen port",
				Sources: cli.EnvVars("QUILLMARK_PORT"),
			},
			&cli.StringFlag{
				Name:    "quills",
				Usage:   "Directory holding quill bundles",
				Sources: cli.EnvVars("QUILLMARK_QUILLS_DIR"),
			},
			&cli.StringFlag{
				Name:    "db",
				Usage:   "SQLite catalog path",
				Sources: cli.EnvVars("QUILLMARK_DB"),
			},
			&cli.StringFlag{
				Name:    "assets",
				Usage:   "Staged assets directory",
				Sources: cli.EnvVars("QUILLMARK_ASSETS_DIR"),
			},
			&cli.StringFlag{
				Name:    "default-quill",
				Usage:   "Quill used when a document carries no QUILL tag",
				Sources: cli.EnvVars("QUILLMARK_DEFAULT_QUILL"),
			},
			&cli.BoolFlag{
				Name:    "watch",
				Usage:   "Resync the catalog on filesystem changes",
				Sources: cli.EnvVars("QUILLMARK_WATCH"),
			},
			&cli.BoolFlag{
				Name:    "mcp",
				Usage:   "Serve MCP tools on stdio",
				Sources: cli.EnvVars("QUILLMARK_MCP"),
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Bearer token; enables token auth when set",
				Sources: cli.EnvVars("QUILLMARK_AUTH_TOKEN"),
			},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	// Flags and QUILLMARK_ variables override file values.
	if cmd.IsSet("port") {
		cfg.App.HTTP.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("quills") {
		cfg.Quills.Path = cmd.String("quills")
	}
	if cmd.IsSet("db") {
		cfg.SQLite.Path = cmd.String("db")
	}
	if cmd.IsSet("assets") {
		cfg.Render.AssetsDir = cmd.String("assets")
	}
	if cmd.IsSet("default-quill") {
		cfg.Quills.Default = cmd.String("default-quill")
	}
	if cmd.IsSet("watch") {
		cfg.Quills.Watch = cmd.Bool("watch")
	}
	if cmd.IsSet("mcp") {
		cfg.MCP.Enabled = cmd.Bool("mcp")
	}
	if cmd.IsSet("token") {
		cfg.Auth.Mode = internal.AuthModeToken
		cfg.Auth.Token = cmd.String("token")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

// readInput reads the named file, or stdin when the name is empty or "-".
func readInput(name string) ([]byte, error) {
	if name == "" || name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}

func writeJSON(w io.Writer, v any, compact bool) error {
	var (
		data []byte
		err  error
	)
	if compact {
		data, err = json.Marshal(v)
	} else {
		data, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// loadEngine loads every quill bundle under dir into a fresh engine with
// the HTML backend registered. Broken bundles are skipped with a warning.
func loadEngine(dir, defaultQuill string) (*engine.Engine, error) {
	var opts []engine.Option
	if defaultQuill != "" {
		opts = append(opts, engine.WithDefaultQuill(defaultQuill))
	}
	eng := engine.New(opts...)
	eng.RegisterBackend(html.New())

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read quills dir: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		q, err := quill.Load(filepath.Join(dir, e.Name()))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: skipping %s: %v\n", e.Name(), err)
			continue
		}
		eng.RegisterQuill(q)
	}
	return eng, nil
}
