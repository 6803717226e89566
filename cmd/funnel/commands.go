package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/spf13/cobra"

	"github.com/evanschultz/funnel/internal/adapters/server"
	"github.com/evanschultz/funnel/internal/adapters/server/common"
	"github.com/evanschultz/funnel/internal/app"
	"github.com/evanschultz/funnel/internal/board"
	"github.com/evanschultz/funnel/internal/domain"
	"github.com/evanschultz/funnel/internal/prefs"
	"github.com/evanschultz/funnel/internal/tui"
)

// withRuntime opens the application, runs fn and closes it again.
func withRuntime(ctx context.Context, opts *rootOptions, command string, fn func(*runtimeEnv) error) error {
	rt, err := opts.open(ctx, command)
	if err != nil {
		return err
	}
	defer rt.Close()
	rt.logger.Debug("command flow start", "command", command)
	if err := fn(rt); err != nil {
		rt.logger.Error("command flow failed", "command", command, "err", err)
		return err
	}
	rt.logger.Debug("command flow complete", "command", command)
	return nil
}

// runTUI starts the board program.
func runTUI(ctx context.Context, opts *rootOptions) error {
	return withRuntime(ctx, opts, "tui", func(rt *runtimeEnv) error {
		p, err := rt.pipeline(opts.pipeline)
		if err != nil {
			return err
		}
		modelOpts := []tui.Option{
			tui.WithFieldStore(rt.fieldStore()),
			tui.WithPipeline(p),
			tui.WithCurrencyPrefix(rt.cfg.Card.CurrencyPrefix),
			tui.WithDragThreshold(rt.cfg.Board.DragThreshold),
			tui.WithActivationWindow(rt.cfg.ActivationWindow()),
			tui.WithToastDuration(rt.cfg.ToastDuration()),
			tui.WithLogger(rt.logger.Sink()),
		}
		if _, path := rt.preferenceBackend(); path != "" && rt.cfg.Preferences.Watch {
			watcher, err := prefs.NewWatcher(path, rt.logger.Sink())
			if err != nil {
				rt.logger.Warn("preference watcher unavailable", "path", path, "err", err)
			} else {
				watcher.Start()
				defer func() { _ = watcher.Close() }()
				modelOpts = append(modelOpts, tui.WithPreferenceWatcher(watcher))
			}
		}

		rt.logger.Info("starting tui program loop", "pipeline", p)
		if _, err := programFactory(tui.NewModel(rt.svc, modelOpts...)).Run(); err != nil {
			return fmt.Errorf("run tui program: %w", err)
		}
		return nil
	})
}

func newPathsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data and log paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := opts.resolvePaths()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(out, "card_fields: %s\n", paths.PrefsPath)
			_, _ = fmt.Fprintf(out, "log_dir: %s\n", paths.LogDir)
			return nil
		},
	}
}

func newBoardCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Print the columns of a pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), opts, "board", func(rt *runtimeEnv) error {
				p, err := rt.pipeline(opts.pipeline)
				if err != nil {
					return err
				}
				summary, err := rt.svc.Summary(cmd.Context(), p)
				if err != nil {
					return fmt.Errorf("load %s board: %w", p, err)
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), summary)
				}
				writeBoard(cmd.OutOrStdout(), summary, board.CurrencyFormatter(rt.cfg.Card.CurrencyPrefix))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the board as JSON")
	return cmd
}

// newPlainTable returns a borderless, unstyled table so output stays pipeable.
func newPlainTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		Headers(headers...)
}

// writeTable prints t followed by a newline.
func writeTable(w io.Writer, t *table.Table) {
	_, _ = fmt.Fprintln(w, t.String())
}

// writeBoard prints one summary as a stage table and an item table.
func writeBoard(w io.Writer, summary app.BoardSummary, format board.AmountFormatter) {
	_, _ = fmt.Fprintf(w, "%s: %d items · %s\n\n", summary.Pipeline, summary.Count, format(summary.Total))

	stages := newPlainTable("STAGE", "ITEMS", "TOTAL")
	items := newPlainTable("STAGE", "ID", "TITLE", "VALUE")
	for _, column := range summary.Columns {
		stages.Row(column.Title, strconv.Itoa(column.Count), format(column.Total))
		for _, item := range column.Items {
			value := ""
			if v := item.Value.Float(); v != 0 {
				value = format(v)
			}
			items.Row(column.Title, item.ID, item.Title, value)
		}
	}
	writeTable(w, stages)
	if summary.Count > 0 {
		_, _ = fmt.Fprintln(w)
		writeTable(w, items)
	}

	if len(summary.Unplaced) > 0 {
		_, _ = fmt.Fprintf(w, "\n%d items hidden: status matches no stage\n", len(summary.Unplaced))
		hidden := newPlainTable("ID", "TITLE", "STATUS")
		for _, item := range summary.Unplaced {
			hidden.Row(item.ID, item.Title, item.Status)
		}
		writeTable(w, hidden)
	}
}

func newMoveCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "move <item-id> <stage-id>",
		Short: "Move an item to another stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), opts, "move", func(rt *runtimeEnv) error {
				item, err := rt.svc.GetItem(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("find item %q: %w", args[0], err)
				}
				result, err := rt.svc.MoveItem(cmd.Context(), item.Pipeline, item.ID, args[1])
				if err != nil {
					return fmt.Errorf("move item %q: %w", item.ID, err)
				}
				out := cmd.OutOrStdout()
				if !result.Changed {
					_, _ = fmt.Fprintf(out, "%s already in %s\n", result.Item.ID, result.Item.Status)
					return nil
				}
				_, _ = fmt.Fprintf(out, "moved %s: %s → %s\n", result.Item.ID, result.From, result.Item.Status)
				return nil
			})
		},
	}
}

func newStagesCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stages",
		Short: "List and edit the stages of a pipeline",
	}

	// stageAction runs fn against the selected pipeline and prints the resulting list.
	stageAction := func(name string, fn func(context.Context, *runtimeEnv, domain.Pipeline, []string) ([]domain.Stage, error)) func(*cobra.Command, []string) error {
		return func(c *cobra.Command, args []string) error {
			return withRuntime(c.Context(), opts, "stages "+name, func(rt *runtimeEnv) error {
				p, err := rt.pipeline(opts.pipeline)
				if err != nil {
					return err
				}
				stages, err := fn(c.Context(), rt, p, args)
				if err != nil {
					return err
				}
				return writeStages(c.OutOrStdout(), stages)
			})
		}
	}

	var color string
	add := &cobra.Command{
		Use:   "add <title>",
		Short: "Append a stage",
		Args:  cobra.MinimumNArgs(1),
		RunE: stageAction("add", func(ctx context.Context, rt *runtimeEnv, p domain.Pipeline, args []string) ([]domain.Stage, error) {
			if _, err := rt.svc.AddStage(ctx, p, strings.Join(args, " "), color); err != nil {
				return nil, err
			}
			return rt.svc.ListStages(ctx, p)
		}),
	}
	add.Flags().StringVar(&color, "color", "", "hex color such as #3b82f6")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stages in display order",
			Args:  cobra.NoArgs,
			RunE: stageAction("list", func(ctx context.Context, rt *runtimeEnv, p domain.Pipeline, _ []string) ([]domain.Stage, error) {
				return rt.svc.ListStages(ctx, p)
			}),
		},
		add,
		&cobra.Command{
			Use:   "rename <stage-id> <title>",
			Short: "Rename a stage",
			Args:  cobra.MinimumNArgs(2),
			RunE: stageAction("rename", func(ctx context.Context, rt *runtimeEnv, p domain.Pipeline, args []string) ([]domain.Stage, error) {
				return rt.svc.RenameStage(ctx, p, args[0], strings.Join(args[1:], " "))
			}),
		},
		&cobra.Command{
			Use:   "recolor <stage-id> <color>",
			Short: "Change a stage color",
			Args:  cobra.ExactArgs(2),
			RunE: stageAction("recolor", func(ctx context.Context, rt *runtimeEnv, p domain.Pipeline, args []string) ([]domain.Stage, error) {
				return rt.svc.RecolorStage(ctx, p, args[0], args[1])
			}),
		},
		&cobra.Command{
			Use:   "delete <stage-id>",
			Short: "Delete an empty stage",
			Args:  cobra.ExactArgs(1),
			RunE: stageAction("delete", func(ctx context.Context, rt *runtimeEnv, p domain.Pipeline, args []string) ([]domain.Stage, error) {
				return rt.svc.DeleteStage(ctx, p, args[0])
			}),
		},
		&cobra.Command{
			Use:   "move <stage-id> <index>",
			Short: "Move a stage to a zero-based position",
			Args:  cobra.ExactArgs(2),
			RunE: stageAction("move", func(ctx context.Context, rt *runtimeEnv, p domain.Pipeline, args []string) ([]domain.Stage, error) {
				index, err := strconv.Atoi(args[1])
				if err != nil {
					return nil, fmt.Errorf("parse index %q: %w", args[1], err)
				}
				return rt.svc.MoveStage(ctx, p, args[0], index)
			}),
		},
	)
	return cmd
}

// writeStages prints stages as an aligned table.
func writeStages(w io.Writer, stages []domain.Stage) error {
	t := newPlainTable("POS", "ID", "TITLE", "COLOR")
	for _, st := range stages {
		t.Row(strconv.Itoa(st.Position), st.ID, st.Title, st.Color)
	}
	writeTable(w, t)
	return nil
}

func newFieldsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fields",
		Short: "Show or change the fields shown on cards",
	}
	fieldAction := func(name string, fn func(context.Context, *prefs.Store, []string) error) func(*cobra.Command, []string) error {
		return func(c *cobra.Command, args []string) error {
			return withRuntime(c.Context(), opts, "fields "+name, func(rt *runtimeEnv) error {
				store := rt.fieldStore()
				if err := fn(c.Context(), store, args); err != nil {
					return err
				}
				writeFields(c.OutOrStdout(), store.Get(c.Context()))
				return nil
			})
		}
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the visible card fields in order",
			Args:  cobra.NoArgs,
			RunE: fieldAction("show", func(context.Context, *prefs.Store, []string) error {
				return nil
			}),
		},
		&cobra.Command{
			Use:   "set <field>...",
			Short: "Replace the visible card fields",
			Args:  cobra.MinimumNArgs(1),
			RunE: fieldAction("set", func(ctx context.Context, store *prefs.Store, args []string) error {
				fields, err := parseFieldArgs(args)
				if err != nil {
					return err
				}
				return store.Set(ctx, fields)
			}),
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Restore the default card fields",
			Args:  cobra.NoArgs,
			RunE: fieldAction("reset", func(ctx context.Context, store *prefs.Store, _ []string) error {
				return store.Reset(ctx)
			}),
		},
	)
	return cmd
}

// parseFieldArgs accepts space or comma separated field ids.
func parseFieldArgs(args []string) ([]domain.FieldID, error) {
	var raw []string
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			if part = strings.TrimSpace(part); part != "" {
				raw = append(raw, part)
			}
		}
	}
	for _, part := range raw {
		if !domain.IsKnownField(domain.FieldID(strings.ToLower(part))) {
			return nil, fmt.Errorf("unknown card field %q (known: %s)", part, strings.Join(domain.FieldStrings(domain.KnownFields()), ", "))
		}
	}
	fields := domain.ParseFieldIDs(raw)
	if len(fields) > domain.MaxVisibleCardFields {
		return nil, fmt.Errorf("cards show at most %d fields, got %d", domain.MaxVisibleCardFields, len(fields))
	}
	return fields, nil
}

func writeFields(w io.Writer, fields []domain.FieldID) {
	t := newPlainTable("#", "FIELD", "LABEL")
	for idx, field := range fields {
		t.Row(strconv.Itoa(idx+1), string(field), domain.FieldLabel(field))
	}
	writeTable(w, t)
}

func newImportCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <snapshot.json>",
		Short: "Upsert stages and items from a JSON snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}
			var snap app.Snapshot
			if err := json.Unmarshal(content, &snap); err != nil {
				return fmt.Errorf("decode snapshot json: %w", err)
			}
			return withRuntime(cmd.Context(), opts, "import", func(rt *runtimeEnv) error {
				result, err := rt.svc.ImportSnapshot(cmd.Context(), snap)
				if err != nil {
					return fmt.Errorf("import snapshot: %w", err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %d items and %d stages\n", result.Items, result.Stages)
				return nil
			})
		},
	}
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stages and items as a JSON snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), opts, "export", func(rt *runtimeEnv) error {
				var pipelines []domain.Pipeline
				if strings.TrimSpace(opts.pipeline) != "" {
					p, err := domain.ParsePipeline(opts.pipeline)
					if err != nil {
						return err
					}
					pipelines = append(pipelines, p)
				}
				snap, err := rt.svc.ExportSnapshot(cmd.Context(), pipelines...)
				if err != nil {
					return fmt.Errorf("export snapshot: %w", err)
				}
				if outPath == "" || outPath == "-" {
					return writeJSON(cmd.OutOrStdout(), snap)
				}
				if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
					return fmt.Errorf("create export output dir: %w", err)
				}
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				if err := writeJSON(f, snap); err != nil {
					_ = f.Close()
					return err
				}
				return f.Close()
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "output file path ('-' for stdout)")
	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and MCP tools over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), opts, "serve", func(rt *runtimeEnv) error {
				if strings.TrimSpace(bind) != "" {
					rt.cfg.Server.Bind = bind
				}
				repo := rt.repo
				return server.Run(cmd.Context(), server.Config{
					HTTPBind:      rt.cfg.Server.Bind,
					APIEndpoint:   rt.cfg.Server.APIEndpoint,
					MCPEndpoint:   rt.cfg.Server.MCPEndpoint,
					ServerName:    "funnel",
					ServerVersion: version,
				}, server.Dependencies{
					Pipelines: common.NewAppServiceAdapter(rt.svc),
					Ready: func(ctx context.Context) error {
						ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
						defer cancel()
						return repo.Ping(ctx)
					},
					Logger: rt.logger.Sink(),
				})
			})
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "listen address (defaults to server.bind)")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	encoded = append(encoded, '\n')
	if _, err := w.Write(encoded); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}
