package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/relquery/pkg/client"
)

func descriptorArgs(args []string) string {
	if len(args) == 2 {
		return args[1]
	}
	return ""
}

// NewCreateCommand creates the create command.
func NewCreateCommand(app *App) *cobra.Command {
	var descriptor string

	cmd := &cobra.Command{
		Use:   "create MODEL [DESCRIPTOR_FILE|-]",
		Short: "Insert records",
		Long: `Insert one or more records:

  values: [{name: poetry}, {name: epic}]
  returning: [id]
  onConflict: {columns: [name], doNothing: true}`,
		Args:        cobra.RangeArgs(1, 2),
		Annotations: needs(needsDB),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := app.readDescriptor(descriptorArgs(args), descriptor)
			if err != nil {
				return err
			}
			ca, err := client.ParseCreate(data)
			if err != nil {
				return err
			}
			c := app.container.Client()
			var res client.MutationResult
			if len(ca.Values) == 1 {
				res, err = c.Create(cmd.Context(), args[0], ca)
			} else {
				res, err = c.CreateMany(cmd.Context(), args[0], ca)
			}
			if err != nil {
				return err
			}
			return app.printMutation("created", res)
		},
	}
	cmd.Flags().StringVarP(&descriptor, "descriptor", "d", "", "inline create descriptor")
	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(app *App) *cobra.Command {
	var (
		descriptor string
		one        bool
	)

	cmd := &cobra.Command{
		Use:         "update MODEL [DESCRIPTOR_FILE|-]",
		Short:       "Update records matching a filter",
		Long:        "Update records: {set: {rating: 5}, where: {id: 3}, returning: [id]}",
		Args:        cobra.RangeArgs(1, 2),
		Annotations: needs(needsDB),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := app.readDescriptor(descriptorArgs(args), descriptor)
			if err != nil {
				return err
			}
			ua, err := client.ParseUpdate(data)
			if err != nil {
				return err
			}
			c := app.container.Client()
			var res client.MutationResult
			if one {
				res, err = c.UpdateOne(cmd.Context(), args[0], ua)
			} else {
				res, err = c.Update(cmd.Context(), args[0], ua)
			}
			if err != nil {
				return err
			}
			return app.printMutation("updated", res)
		},
	}
	cmd.Flags().StringVarP(&descriptor, "descriptor", "d", "", "inline update descriptor")
	cmd.Flags().BoolVar(&one, "one", false, "fail and change nothing unless exactly one record matches")
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(app *App) *cobra.Command {
	var (
		descriptor string
		one        bool
		yes        bool
	)

	cmd := &cobra.Command{
		Use:         "delete MODEL [DESCRIPTOR_FILE|-]",
		Short:       "Delete records matching a filter",
		Long:        "Delete records: {where: {id: 3}, returning: [id]}",
		Args:        cobra.RangeArgs(1, 2),
		Annotations: needs(needsDB),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := app.readDescriptor(descriptorArgs(args), descriptor)
			if err != nil {
				return err
			}
			da, err := client.ParseDelete(data)
			if err != nil {
				return err
			}
			c := app.container.Client()

			if !yes && !one {
				n, err := c.Count(cmd.Context(), args[0], client.Query{Where: da.Where})
				if err != nil {
					return err
				}
				ok, err := app.Confirm(fmt.Sprintf("Delete %d %s record(s)?", n, args[0]))
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("aborted")
				}
			}

			var res client.MutationResult
			if one {
				res, err = c.DeleteOne(cmd.Context(), args[0], da)
			} else {
				res, err = c.Delete(cmd.Context(), args[0], da)
			}
			if err != nil {
				return err
			}
			return app.printMutation("deleted", res)
		},
	}
	cmd.Flags().StringVarP(&descriptor, "descriptor", "d", "", "inline delete descriptor")
	cmd.Flags().BoolVar(&one, "one", false, "fail and delete nothing unless exactly one record matches")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
