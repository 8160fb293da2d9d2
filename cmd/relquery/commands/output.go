package commands

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/satishbabariya/relquery/pkg/client"
)

// printValue writes v in the selected output format. render prints the
// table form.
func (a *App) printValue(v any, render func() error) error {
	switch a.output {
	case "", "table":
		return render()
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(a.Printer.Out, string(data))
		return err
	case "yaml":
		enc := yaml.NewEncoder(a.Printer.Out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", a.output)
	}
}

func (a *App) printRecords(records []client.Record) error {
	if records == nil {
		records = []client.Record{}
	}
	return a.printValue(records, func() error {
		rows := make([]map[string]any, len(records))
		for i, r := range records {
			rows[i] = r
		}
		return a.Printer.Records(rows)
	})
}

func (a *App) printMutation(op string, res client.MutationResult) error {
	return a.printValue(res, func() error {
		a.Printer.Success("%s: %d row(s)", op, res.Count)
		if len(res.Records) == 0 {
			return nil
		}
		return a.printRecords(res.Records)
	})
}
