package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/macropower/dtrl/api/v1beta1/configs"
	"github.com/macropower/dtrl/api/v1beta1/projectconfigs"
	"github.com/macropower/dtrl/api/v1beta1/tables"
	"github.com/macropower/dtrl/pkg/highlight"
)

var schemas = map[string]func() []byte{
	"config":  configs.Schema,
	"project": projectconfigs.Schema,
	"table":   tables.Schema,
}

func schemaNames() []string {
	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

func NewSchemaCmd() *cobra.Command {
	names := schemaNames()

	return &cobra.Command{
		Use:       fmt.Sprintf("schema [%s]", strings.Join(names, "|")),
		Short:     "Print the JSON schema for a dtrl document kind",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "config"
			if len(args) > 0 {
				name = args[0]
			}

			return writeSource(cmd.OutOrStdout(), string(schemas[name]()), highlight.LanguageJSON, isTerminal(cmd.OutOrStdout()))
		},
	}
}
