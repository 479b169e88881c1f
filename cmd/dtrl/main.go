package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/macropower/dtrl/internal/cli"
	"github.com/macropower/dtrl/pkg/version"
)

func main() {
	err := fang.Execute(context.Background(), cli.NewRootCmd(),
		fang.WithVersion(version.String()),
		fang.WithErrorHandler(cli.ErrorHandler),
	)
	if err != nil {
		os.Exit(1)
	}
}
