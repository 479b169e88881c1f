package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/macropower/dtrl/api/v1beta1/configs"
	"github.com/macropower/dtrl/pkg/command"
	"github.com/macropower/dtrl/pkg/highlight"
	"github.com/macropower/dtrl/pkg/mcp"
)

const (
	cmdExamples = `  # Compile every table under the current directory:
  dtrl

  # Compile a file or directory path:
  dtrl ./rules/pricing.yaml

  # Force using the "java" profile (defined in config):
  dtrl ./rules java

  # Write the compiled rules to a file, recompiling on changes:
  dtrl ./rules -o rules.drl --watch

  # Serve the MCP server over stdio:
  dtrl ./rules --serve-mcp stdio`

	// mcpStdio selects the stdio transport for --serve-mcp.
	mcpStdio = "stdio"
)

type CompileArgs struct {
	*RootArgs

	Path        string
	Profile     string
	ConfigPath  string
	OutputPath  string
	ServeMCP    string
	Jobs        int
	Watch       bool
	WriteConfig bool
	ShowConfig  bool
}

func NewCompileArgs(rootArgs *RootArgs) *CompileArgs {
	return &CompileArgs{
		RootArgs: rootArgs,
	}
}

func (ca *CompileArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ca.ConfigPath, "config", "", "Path to the dtrl configuration file")
	cmd.Flags().StringVarP(&ca.OutputPath, "output", "o", "", "Write compiled rules to a file instead of stdout")
	cmd.Flags().StringVar(&ca.ServeMCP, "serve-mcp", "",
		fmt.Sprintf("Serve the MCP server at the specified address, or %q", mcpStdio))
	cmd.Flags().IntVarP(&ca.Jobs, "jobs", "j", 0, "Rows compiled in parallel per table (0 uses all CPUs)")
	cmd.Flags().BoolVarP(&ca.Watch, "watch", "w", false, "Watch for changes and recompile")
	cmd.Flags().BoolVar(&ca.WriteConfig, "write-config", false, "Write the default configuration files and exit")
	cmd.Flags().BoolVar(&ca.ShowConfig, "show-config", false, "Print the active configuration and exit")

	err := cmd.MarkFlagFilename("config", "yaml", "yml")
	if err != nil {
		panic(fmt.Errorf("mark config flag: %w", err))
	}

	err = cmd.MarkFlagFilename("output", "drl")
	if err != nil {
		panic(fmt.Errorf("mark output flag: %w", err))
	}
}

func NewCompileCmd(ca *CompileArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "compile [path] [profile]",
		Short:             "Default command, can be used explicitly if path/profile is ambiguous",
		Example:           cmdExamples,
		Args:              cobra.MaximumNArgs(2),
		ValidArgsFunction: compileCompletion(ca),
		RunE: func(cmd *cobra.Command, args []string) error {
			ca.Path = "."
			if len(args) > 0 {
				ca.Path = args[0]
			}
			if len(args) > 1 {
				ca.Profile = args[1]
			}

			return runCompile(cmd, ca)
		},
	}
	ca.AddFlags(cmd)

	bindEnvVars(cmd)

	return cmd
}

// Try to load config to get available profiles.
func tryGetProfileNames(ca *CompileArgs, path string) []cobra.Completion {
	configPath := ca.ConfigPath
	if configPath == "" {
		configPath = configs.GetPath()
	}

	cfg, err := loadConfig(configPath, path, false)
	if err != nil {
		return nil
	}

	completions := make([]cobra.Completion, 0, len(cfg.Command.Profiles))
	for name, p := range cfg.Command.Profiles {
		desc := p.Package
		if desc == "" {
			desc = "dialect " + p.Dialect
		}

		completions = append(completions, cobra.CompletionWithDesc(name, desc))
	}

	slices.Sort(completions)

	return completions
}

func compileCompletion(ca *CompileArgs) func(*cobra.Command, []string, string) ([]cobra.Completion, cobra.ShellCompDirective) {
	return func(_ *cobra.Command, args []string, _ string) ([]cobra.Completion, cobra.ShellCompDirective) {
		switch len(args) {
		case 0:
			return nil, cobra.ShellCompDirectiveDefault
		case 1:
			return tryGetProfileNames(ca, args[0]), cobra.ShellCompDirectiveNoFileComp
		}

		return nil, cobra.ShellCompDirectiveNoFileComp
	}
}

func runCompile(cmd *cobra.Command, ca *CompileArgs) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	color := isTerminal(cmd.OutOrStdout())

	configPath := ca.ConfigPath
	if configPath == "" {
		configPath = configs.GetPath()
	}

	err := configs.WriteDefault(configPath, false)
	if err != nil {
		slog.Error("write default config", slog.Any("err", err))
	}
	if ca.WriteConfig {
		// Exit early after writing the default config.
		// Also, if there was an error, it should be fatal.
		if err != nil {
			return err //nolint:wrapcheck // Error is already wrapped.
		}

		err = configs.WriteSchema(configs.GetSchemaPath(), false)
		if err != nil {
			return err //nolint:wrapcheck // Error is already wrapped.
		}

		return nil
	}

	cfg, err := loadConfig(configPath, ca.Path, color)
	if err != nil {
		return err
	}

	if ca.ShowConfig {
		slog.Info("active configuration", slog.String("path", configPath))

		yamlBytes, err := cfg.MarshalYAML()
		if err != nil {
			return fmt.Errorf("marshal config yaml: %w", err)
		}

		return writeSource(cmd.OutOrStdout(), string(yamlBytes), highlight.LanguageYAML, color)
	}

	opts := []command.RunnerOpt{
		command.WithRules(cfg.Command.Rules),
		command.WithProfiles(cfg.Command.Profiles),
		command.WithJobs(ca.Jobs),
		command.WithOutput(ca.OutputPath),
		command.WithWatch(ca.Watch),
		command.WithColor(color),
	}
	if ca.Profile != "" {
		opts = append(opts, command.WithProfile(ca.Profile))
	}

	cr, err := command.NewRunner(ca.Path, opts...)
	if err != nil {
		return fmt.Errorf("create command runner: %w", err)
	}
	defer cr.Close()

	if ca.ServeMCP != "" {
		return serveMCP(ctx, ca, cr)
	}

	if ca.Watch {
		return watch(ctx, cmd, ca, cr)
	}

	out := cr.RunContext(ctx)
	if out.Error != nil {
		return out.Error
	}

	if ca.OutputPath != "" {
		slog.Info("compiled rules",
			slog.String("path", ca.OutputPath),
			slog.Int("rules", out.RuleCount()),
		)

		return nil
	}

	return writeSource(cmd.OutOrStdout(), out.Source(), highlight.LanguageDRL, color)
}

func serveMCP(ctx context.Context, ca *CompileArgs, cr *command.Runner) error {
	address := ca.ServeMCP
	if address == mcpStdio {
		address = ""
	}

	mcpServer, err := mcp.NewServer(address, cr, ca.Path)
	if err != nil {
		return fmt.Errorf("create MCP server: %w", err)
	}

	defer func() {
		err := mcpServer.Close()
		if err != nil {
			slog.Error("close MCP server", slog.Any("err", err))
		}
	}()

	err = mcpServer.Serve(ctx)
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}

	return nil
}

// watch compiles on every relevant file change until ctx is canceled.
func watch(ctx context.Context, cmd *cobra.Command, ca *CompileArgs, cr *command.Runner) error {
	ch := make(chan command.Event, 100)
	cr.Subscribe(ch)

	go cr.RunOnEvent()
	go cr.RunContext(ctx)

	slog.Info("watching for changes", slog.String("path", cr.String()))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event := <-ch:
			switch e := event.(type) {
			case command.EventWrite:
				slog.Info("wrote rules",
					slog.String("path", e.Path),
					slog.String("size", humanize.Bytes(uint64(e.Bytes))), //nolint:gosec // Length is non-negative.
				)

			case command.EventEnd:
				if e.Error != nil {
					slog.Error("compile failed", slog.Any("err", e.Error))
					continue
				}

				if ca.OutputPath == "" {
					err := writeSource(cmd.OutOrStdout(), command.Output(e).Source(), highlight.LanguageDRL, false)
					if err != nil {
						return err
					}
				}

				slog.Info("compiled rules", slog.Int("rules", command.Output(e).RuleCount()))
			}
		}
	}
}

func writeSource(w io.Writer, src, language string, color bool) error {
	if color {
		pretty, err := highlight.New(language).Render(src)
		if err != nil {
			slog.Debug("highlight source", slog.Any("err", err))
		} else {
			src = pretty
		}
	}

	_, err := io.WriteString(w, src)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return term.IsTerminal(int(f.Fd())) //nolint:gosec // File descriptors fit in int.
}
