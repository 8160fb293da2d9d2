package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/relquery/internal/watch"
	"github.com/satishbabariya/relquery/pkg/client"
)

// NewQueryCommand creates the query command.
func NewQueryCommand(app *App) *cobra.Command {
	var (
		descriptor  string
		first       bool
		unique      bool
		watchChange bool
	)

	cmd := &cobra.Command{
		Use:   "query MODEL [DESCRIPTOR_FILE|-]",
		Short: "Find records of a model",
		Long: `Find records of a model with their included relations.

The descriptor is YAML or JSON:

  select: [id, title]
  where: {year: {$gte: 2000}}
  include: {author: {select: [name]}, tags: {}}
  orderBy: [[year, desc]]
  limit: 10`,
		Args:        cobra.RangeArgs(1, 2),
		Annotations: needs(needsDB),
		RunE: func(cmd *cobra.Command, args []string) error {
			if first && unique {
				return errors.New("--first and --unique are exclusive")
			}
			file := ""
			if len(args) == 2 {
				file = args[1]
			}
			run := func(ctx context.Context) error {
				return app.runQuery(ctx, args[0], file, descriptor, first, unique)
			}
			if !watchChange {
				return run(cmd.Context())
			}
			if file == "" || file == "-" {
				return errors.New("--watch needs a descriptor file")
			}
			w, err := watch.New(file, 0, app.container.Logger(), func(ctx context.Context) error {
				if err := run(ctx); err != nil {
					app.Printer.Error("%v", err)
				}
				return nil
			})
			if err != nil {
				return err
			}
			app.Printer.Muted("watching %s, press Ctrl+C to stop", file)
			return w.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&descriptor, "descriptor", "d", "", "inline query descriptor")
	cmd.Flags().BoolVar(&first, "first", false, "return only the first record")
	cmd.Flags().BoolVar(&unique, "unique", false, "fail unless exactly one record matches")
	cmd.Flags().BoolVarP(&watchChange, "watch", "w", false, "rerun when the descriptor file changes")
	return cmd
}

func (a *App) runQuery(ctx context.Context, model, file, inline string, first, unique bool) error {
	data, err := a.readDescriptor(file, inline)
	if err != nil {
		return err
	}
	q, err := client.ParseQuery(data)
	if err != nil {
		return err
	}

	c := a.container.Client()
	switch {
	case first || unique:
		var rec client.Record
		if unique {
			rec, err = c.FindUnique(ctx, model, q)
		} else {
			rec, err = c.FindFirst(ctx, model, q)
		}
		if err != nil {
			return err
		}
		if rec == nil {
			return a.printRecords(nil)
		}
		return a.printRecords([]client.Record{rec})
	default:
		records, err := c.FindMany(ctx, model, q)
		if err != nil {
			return err
		}
		return a.printRecords(records)
	}
}

// NewCountCommand creates the count command.
func NewCountCommand(app *App) *cobra.Command {
	var descriptor string

	cmd := &cobra.Command{
		Use:         "count MODEL [DESCRIPTOR_FILE|-]",
		Short:       "Count records of a model",
		Args:        cobra.RangeArgs(1, 2),
		Annotations: needs(needsDB),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := ""
			if len(args) == 2 {
				file = args[1]
			}
			data, err := app.readDescriptor(file, descriptor)
			if err != nil {
				return err
			}
			q, err := client.ParseQuery(data)
			if err != nil {
				return err
			}
			n, err := app.container.Client().Count(cmd.Context(), args[0], q)
			if err != nil {
				return err
			}
			return app.printValue(map[string]int64{"count": n}, func() error {
				_, err := fmt.Fprintln(app.Printer.Out, n)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&descriptor, "descriptor", "d", "", "inline query descriptor")
	return cmd
}
