package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	charmLog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/evanschultz/funnel/internal/adapters/storage/postgres"
	"github.com/evanschultz/funnel/internal/adapters/storage/sqlite"
	"github.com/evanschultz/funnel/internal/app"
	"github.com/evanschultz/funnel/internal/config"
	"github.com/evanschultz/funnel/internal/domain"
	"github.com/evanschultz/funnel/internal/platform"
	"github.com/evanschultz/funnel/internal/prefs"
)

// version is set at build time.
var version = "dev"

// program is the part of tea.Program the CLI drives.
type program interface {
	Run() (tea.Model, error)
}

// programFactory builds the TUI program; tests swap it.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root := newRootCommand(os.Stdin, os.Stdout, os.Stderr)
	if err := fang.Execute(ctx, root, fang.WithVersion(version)); err != nil {
		stop()
		os.Exit(1)
	}
}

// run executes one command line without fang's styled error output.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCommand(strings.NewReader(""), stdout, stderr)
	root.SetArgs(args)
	root.SilenceErrors = true
	return root.ExecuteContext(ctx)
}

// rootOptions holds the global flags.
type rootOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
	pipeline   string
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
}

// repository is everything the CLI needs from a storage adapter.
type repository interface {
	app.Repository
	prefs.Backend
	Ping(context.Context) error
	Close() error
}

// runtimeEnv is the opened application for one command.
type runtimeEnv struct {
	cfg        config.Config
	paths      platform.Paths
	configPath string
	logger     *runtimeLogger
	repo       repository
	svc        *app.Service
}

func newRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	opts := &rootOptions{stdin: stdin, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "funnel",
		Short:         "CRM pipeline board for leads and opportunities",
		Version:       version,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), opts)
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	defaultApp := "funnel"
	if v := strings.TrimSpace(os.Getenv("FUNNEL_APP_NAME")); v != "" {
		defaultApp = v
	}
	defaultDev := version == "dev"
	if v, ok := parseBoolEnv("FUNNEL_DEV_MODE"); ok {
		defaultDev = v
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&opts.appName, "app", defaultApp, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", defaultDev, "use dev mode paths (<app>-dev)")
	flags.StringVarP(&opts.pipeline, "pipeline", "p", "", "pipeline to operate on (leads or opportunities)")

	root.AddCommand(
		newPathsCommand(opts),
		newBoardCommand(opts),
		newMoveCommand(opts),
		newStagesCommand(opts),
		newFieldsCommand(opts),
		newImportCommand(opts),
		newExportCommand(opts),
		newServeCommand(opts),
	)
	return root
}

// resolvePaths derives platform paths from the global flags.
func (o *rootOptions) resolvePaths() (platform.Paths, error) {
	return platform.DefaultPathsWithOptions(platform.Options{
		AppName: o.appName,
		DevMode: o.devMode,
	})
}

// loadConfig resolves the config file, .env file and env overrides.
func (o *rootOptions) loadConfig() (config.Config, platform.Paths, string, error) {
	paths, err := o.resolvePaths()
	if err != nil {
		return config.Config{}, platform.Paths{}, "", err
	}
	if err := config.LoadDotEnv(""); err != nil {
		return config.Config{}, platform.Paths{}, "", err
	}

	configPath := strings.TrimSpace(o.configPath)
	if configPath == "" {
		configPath = strings.TrimSpace(os.Getenv("FUNNEL_CONFIG"))
	}
	if configPath == "" {
		configPath = paths.ConfigPath
	}
	dbPath := strings.TrimSpace(o.dbPath)
	if dbPath == "" {
		dbPath = strings.TrimSpace(os.Getenv("FUNNEL_DB_PATH"))
	}
	dbOverridden := dbPath != ""
	if !dbOverridden {
		dbPath = paths.DBPath
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return config.Config{}, platform.Paths{}, "", fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}
	cfg, err = cfg.ApplyEnv(os.Getenv)
	if err != nil {
		return config.Config{}, platform.Paths{}, "", fmt.Errorf("apply env overrides: %w", err)
	}
	return cfg, paths, configPath, nil
}

// open loads configuration, the runtime logger and the repository.
func (o *rootOptions) open(ctx context.Context, command string) (*runtimeEnv, error) {
	cfg, paths, configPath, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newRuntimeLogger(o.stderr, o.appName, cfg.Logging, paths.LogDir)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	if command == "tui" {
		logger.SetConsoleEnabled(false)
	}
	// Components without an injected logger write to the runtime sink.
	charmLog.SetDefault(logger.Sink())
	logger.Info("configuration loaded", "command", command, "config_path", configPath, "driver", cfg.Database.Driver, "log_level", cfg.Logging.Level)
	if path := logger.FilePath(); path != "" {
		logger.Debug("file logging enabled", "path", path)
	}

	repo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	svc := app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{
		StageTemplates: cfg.StageTemplates(),
	})
	return &runtimeEnv{
		cfg:        cfg,
		paths:      paths,
		configPath: configPath,
		logger:     logger,
		repo:       repo,
		svc:        svc,
	}, nil
}

// openRepository selects the storage adapter for the configured driver.
func openRepository(ctx context.Context, cfg config.Config, logger *runtimeLogger) (repository, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		logger.Info("opening postgres repository")
		repo, err := postgres.Open(cfg.Database.DSN)
		if err != nil {
			logger.Error("postgres open failed", "err", err)
			return nil, fmt.Errorf("open postgres repository: %w", err)
		}
		if err := repo.Ping(ctx); err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("ping postgres repository: %w", err)
		}
		return repo, nil
	default:
		logger.Info("opening sqlite repository", "db_path", cfg.Database.Path)
		repo, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
			return nil, fmt.Errorf("open sqlite repository: %w", err)
		}
		return repo, nil
	}
}

// Close releases the repository and the log file.
func (r *runtimeEnv) Close() {
	if err := r.repo.Close(); err != nil {
		r.logger.Warn("repository close failed", "err", err)
	}
	_ = r.logger.Close()
}

// pipeline resolves --pipeline against the configured default.
func (r *runtimeEnv) pipeline(flag string) (domain.Pipeline, error) {
	if strings.TrimSpace(flag) == "" {
		return r.cfg.DefaultPipeline(), nil
	}
	return domain.ParsePipeline(flag)
}

// preferenceBackend returns the configured card field backend and, for the
// file backend, its path.
func (r *runtimeEnv) preferenceBackend() (prefs.Backend, string) {
	if r.cfg.Preferences.Backend == config.PreferencesDatabase {
		return r.repo, ""
	}
	path := strings.TrimSpace(r.cfg.Preferences.Path)
	if path == "" {
		path = r.paths.PrefsPath
	}
	return prefs.NewFileBackend(path), path
}

// fieldStore builds the card field store for the configured identity.
func (r *runtimeEnv) fieldStore() *prefs.Store {
	backend, _ := r.preferenceBackend()
	return prefs.NewStore(backend, r.cfg.Identity.User,
		prefs.WithDefaults(r.cfg.CardFields()),
		prefs.WithLogger(r.logger.Sink()),
	)
}

// parseBoolEnv reads a boolean env var and reports whether it was set and valid.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
