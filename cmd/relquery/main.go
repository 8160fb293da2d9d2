// Package main is the entry point for the relquery CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/satishbabariya/relquery/cmd/relquery/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := commands.NewApp()
	err := commands.NewRootCommand(app).ExecuteContext(ctx)
	if cerr := app.Close(context.Background()); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
