package commands

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/relquery/internal/compat"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:         "doctor",
		Short:       "Check the database server supports the generated SQL",
		Args:        cobra.NoArgs,
		Annotations: needs(needsDB),
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := compat.Inspect(cmd.Context(), app.container.Adapter())
			if err != nil {
				return err
			}
			findings := compat.Check(server)

			type result struct {
				Product  string           `json:"product" yaml:"product"`
				Version  string           `json:"version" yaml:"version"`
				Findings []compat.Finding `json:"findings" yaml:"findings"`
			}
			out := result{Product: server.Product, Version: server.Raw, Findings: findings}

			err = app.printValue(out, func() error {
				app.Printer.Keyword("Server", server.Product+" "+server.Raw)
				rows := make([][]string, len(findings))
				for i, f := range findings {
					status := "ok"
					if !f.OK {
						status = "unsupported"
					}
					rows[i] = []string{f.Feature, f.Minimum, status}
				}
				return app.Printer.Table([]string{"Feature", "Minimum", "Status"}, rows)
			})
			if err != nil {
				return err
			}
			for _, f := range findings {
				if !f.OK {
					app.Printer.Warning("%s needs %s %s or newer", f.Feature, f.Product, f.Minimum)
				}
			}
			return nil
		},
	}
}

// Version information (set at build time).
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := map[string]string{
				"version":    Version,
				"commit":     GitCommit,
				"build_time": BuildTime,
				"go":         runtime.Version(),
				"platform":   runtime.GOOS + "/" + runtime.GOARCH,
			}
			return app.printValue(info, func() error {
				app.Printer.Keyword("relquery", Version)
				app.Printer.Keyword("  Git Commit", GitCommit)
				app.Printer.Keyword("  Build Time", BuildTime)
				app.Printer.Keyword("  Go Version", runtime.Version())
				app.Printer.Keyword("  OS/Arch", runtime.GOOS+"/"+runtime.GOARCH)
				return nil
			})
		},
	}
}
