// Package commands implements the relquery CLI commands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/satishbabariya/relquery/internal/adapters/database/provider"
	"github.com/satishbabariya/relquery/internal/config"
	"github.com/satishbabariya/relquery/internal/core/schema"
	"github.com/satishbabariya/relquery/internal/repository"
	"github.com/satishbabariya/relquery/internal/ui"
	"github.com/satishbabariya/relquery/internal/utils/container"
)

// What a command needs before it runs.
const (
	needsKey    = "needs"
	needsSchema = "schema"
	needsClient = "client"
	needsDB     = "db"
)

// App holds what commands share: IO, flags and the container built for
// the running command.
type App struct {
	Fs      afero.Fs
	In      io.Reader
	Printer *ui.Printer
	// Confirm asks a yes/no question before destructive commands.
	Confirm func(message string) (bool, error)
	// ContainerOptions are passed to container.New.
	ContainerOptions []container.Option

	configFile  string
	schemaPath  string
	databaseURL string
	logLevel    string
	output      string

	config    *config.Config
	catalog   *schema.Catalog
	container *container.Container
}

// NewApp creates an App on the OS filesystem and standard streams.
func NewApp() *App {
	return &App{
		Fs:      afero.NewOsFs(),
		In:      os.Stdin,
		Printer: ui.Stdout(),
		Confirm: surveyConfirm,
	}
}

func surveyConfirm(message string) (bool, error) {
	ok := false
	err := survey.AskOne(&survey.Confirm{Message: message}, &ok)
	return ok, err
}

// NewRootCommand creates the relquery command tree.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "relquery",
		Short:         "Query relational databases through a schema catalog",
		Long:          "relquery compiles query descriptors against a schema catalog into SQL for PostgreSQL, MySQL/MariaDB and SQLite, and runs them.",
		Version:       fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.prepare(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close(cmd.Context())
		},
	}
	root.SetOut(app.Printer.Out)
	root.SetErr(app.Printer.Err)

	flags := root.PersistentFlags()
	flags.StringVar(&app.configFile, "config", "", "config file (default: .relquery.yaml in ., $HOME or $HOME/.config/relquery)")
	flags.StringVar(&app.schemaPath, "schema", "", "path to the schema file")
	flags.StringVar(&app.databaseURL, "database-url", "", "database connection URL")
	flags.StringVar(&app.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVarP(&app.output, "output", "o", "table", "output format: table, json or yaml")

	root.AddCommand(
		NewQueryCommand(app),
		NewCountCommand(app),
		NewSQLCommand(app),
		NewCreateCommand(app),
		NewUpdateCommand(app),
		NewDeleteCommand(app),
		NewValidateCommand(app),
		NewDescribeCommand(app),
		NewDoctorCommand(app),
		NewVersionCommand(app),
	)
	return root
}

func needs(level string) map[string]string {
	return map[string]string{needsKey: level}
}

func (a *App) prepare(cmd *cobra.Command) error {
	level := cmd.Annotations[needsKey]
	if level == "" {
		return nil
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.config = cfg

	if level == needsSchema {
		a.catalog, err = repository.NewSchemaRepository(a.Fs).LoadCatalog(cmd.Context(), cfg.Schema.Path)
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	opts := append([]container.Option{container.WithFs(a.Fs)}, a.ContainerOptions...)
	c, err := container.New(cmd.Context(), cfg, opts...)
	if err != nil {
		return err
	}
	a.container, a.catalog = c, c.Catalog()

	if level == needsDB {
		if err := c.Connect(cmd.Context()); err != nil {
			c.Close(cmd.Context())
			a.container = nil
			return err
		}
	}
	return nil
}

// Close releases the container of the last command. Cobra skips post-run
// hooks when a command fails, so callers close again after Execute.
func (a *App) Close(ctx context.Context) error {
	if a.container == nil {
		return nil
	}
	err := a.container.Close(ctx)
	a.container = nil
	return err
}

func (a *App) loadConfig() (*config.Config, error) {
	opts := []config.LoaderOption{config.WithFs(a.Fs)}
	if a.configFile != "" {
		opts = append(opts, config.WithFile(a.configFile))
	}
	cfg, err := config.NewLoader(opts...).Load()
	if err != nil {
		return nil, err
	}
	if a.schemaPath != "" {
		cfg.Schema.Path = a.schemaPath
	}
	if a.databaseURL != "" {
		cfg.Database.URL = a.databaseURL
		cfg.Database.Provider = provider.Infer(a.databaseURL)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	return cfg, nil
}

// readDescriptor reads a descriptor from a file, from stdin for "-", or
// from inline text.
func (a *App) readDescriptor(file, inline string) ([]byte, error) {
	switch {
	case file != "" && inline != "":
		return nil, errors.New("use either a descriptor file or --descriptor, not both")
	case file == "-":
		return io.ReadAll(a.In)
	case file != "":
		return afero.ReadFile(a.Fs, file)
	default:
		return []byte(inline), nil
	}
}
