package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"student_registry/internal/app"
	"student_registry/internal/config"
	"student_registry/internal/model"
	"student_registry/internal/pipeline"
	"student_registry/internal/service/registry"
	pkg_config "student_registry/pkg/config"
	"student_registry/pkg/zaplogger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Registry операции реестра, доступные из командной строки
type Registry interface {
	Add(ctx context.Context, e model.Entry) (model.Student, error)
	AddBulkText(ctx context.Context, text string) (pipeline.BatchResult, error)
	Import(ctx context.Context, src io.Reader) (registry.ImportResult, error)
	Export(ctx context.Context, w io.Writer, title string) (int, error)
	Students(ctx context.Context) ([]model.Student, error)
	Search(ctx context.Context, query string) ([]model.Student, error)
	Delete(ctx context.Context, code string, confirmed bool) (bool, error)
	Prefix(ctx context.Context) (string, error)
	SetPrefix(ctx context.Context, prefix string) error
}

// Env открытый реестр и его окружение
type Env struct {
	Registry   Registry
	ExportBase string
	Location   *time.Location
	Close      func() error
}

// Opener открывает реестр. envPaths: .env файлы из --env; пусто: ./.env, если он есть
type Opener func(ctx context.Context, envPaths []string, logger *zap.Logger) (*Env, error)

type Options struct {
	Open      Opener                                  // nil: хранилище из конфигурации
	NewLogger func(verbose bool) (*zap.Logger, error) // nil: zaplogger.NewConsole
}

// App состояние одного запуска registryctl
type App struct {
	opts    Options
	envPaths []string
	verbose bool

	logger *zap.Logger
	env    *Env
}

func New(opts Options) *App {
	if opts.Open == nil {
		opts.Open = OpenFromConfig
	}
	if opts.NewLogger == nil {
		opts.NewLogger = zaplogger.NewConsole
	}
	return &App{opts: opts}
}

// Execute запускает CLI с аргументами args
func (a *App) Execute(ctx context.Context, args []string) error {
	root := a.NewRootCommand()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if cerr := a.close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (a *App) NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "registryctl",
		Short: "Student registry operator CLI",
		Long: `registryctl works with the same store as the registry bot.

Codes, duplicate checks and phone normalization follow the bot exactly,
so anything added here shows up in the bot and in the HTTP API.`,
		PersistentPreRunE: a.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	root.PersistentFlags().StringSliceVar(&a.envPaths, "env", nil,
		"comma-separated .env files, each must exist; earlier files win (default ./.env if present)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging to stderr")

	root.AddCommand(
		a.newAddCommand(),
		a.newBulkCommand(),
		a.newImportCommand(),
		a.newExportCommand(),
		a.newListCommand(),
		a.newDeleteCommand(),
		a.newPrefixCommand(),
	)
	return root
}

func (a *App) setup(cmd *cobra.Command, _ []string) error {
	logger, err := a.opts.NewLogger(a.verbose)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	a.logger = logger

	env, err := a.opts.Open(cmd.Context(), a.envPaths, logger)
	if err != nil {
		return fmt.Errorf("opening registry: %w", err)
	}
	if env.Location == nil {
		env.Location = time.UTC
	}
	a.env = env
	return nil
}

// close закрывает хранилище и после ошибки команды
func (a *App) close() error {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.env == nil || a.env.Close == nil {
		return nil
	}
	env := a.env
	a.env = nil
	if err := env.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	return nil
}

// OpenFromConfig открывает хранилище из .env и переменных окружения, как бот.
// Явно указанные файлы обязательны; без них читается ./.env, если он есть.
func OpenFromConfig(ctx context.Context, envPaths []string, logger *zap.Logger) (*Env, error) {
	cfg, err := loadConfig(envPaths, logger)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	loc := app.LoadLocation(cfg.RegistryConfig.Timezone, logger)
	return &Env{
		Registry:   app.NewRegistry(cfg, store.KV, loc, logger),
		ExportBase: cfg.RegistryConfig.ExportBaseName,
		Location:   loc,
		Close:      store.Close,
	}, nil
}

func loadConfig(envPaths []string, logger *zap.Logger) (config.Config, error) {
	cfg := config.Config{}
	if len(envPaths) == 0 {
		return cfg, pkg_config.LoadWithOptionalEnv(".env", logger, &cfg)
	}
	files := make([]*pkg_config.ConfigFile, 0, len(envPaths))
	for _, path := range envPaths {
		files = append(files, &pkg_config.ConfigFile{Path: path, Config: &cfg})
	}
	return cfg, pkg_config.LoadConfigFiles(files...)
}
