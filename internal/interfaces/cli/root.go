// Package cli implements the nerrecon command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/turtacn/NERRecon/internal/app"
	"github.com/turtacn/NERRecon/internal/application/reconciliation"
	"github.com/turtacn/NERRecon/internal/config"
	"github.com/turtacn/NERRecon/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NERRecon/internal/infrastructure/storage/file"
	"github.com/turtacn/NERRecon/internal/intelligence/ensemble"
	"github.com/turtacn/NERRecon/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Output formats.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatTableOut = "table"
)

const defaultEnvFile = ".env"

type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	EnvFile      string
	LogLevel     string
	OutputFormat string
	Verbose      bool
	NoColor      bool
	Timeout      time.Duration
}

// CLIContext carries initialized dependencies through the command tree.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	OutputFormat string
	Verbose      bool
	NoColor      bool
	Timeout      time.Duration

	infraOnce sync.Once
	infra     *app.Infrastructure
	infraErr  error
}

// Infrastructure connects the configured backends on first use.
func (c *CLIContext) Infrastructure(ctx context.Context) (*app.Infrastructure, error) {
	c.infraOnce.Do(func() {
		c.infra, c.infraErr = app.New(ctx, c.Config, c.Logger)
	})
	return c.infra, c.infraErr
}

// Close releases backends opened by Infrastructure.
func (c *CLIContext) Close() {
	if c.infra != nil {
		c.infra.Close()
	}
}

// LocalService returns a service that reads and writes plain file paths,
// relative to the working directory.  No remote backend is touched.
func (c *CLIContext) LocalService() (*reconciliation.Service, error) {
	var extra []*ensemble.Policy
	if path := c.Config.Reconcile.PolicyFile; path != "" {
		var err error
		if extra, err = ensemble.LoadPolicyFile(path); err != nil {
			return nil, err
		}
	}
	opts := reconciliation.OptionsFromConfig(c.Config, extra...)
	opts.Timeout = c.Timeout
	return reconciliation.NewService(reconciliation.Dependencies{
		Store:  file.NewStore(".", c.Logger),
		Logger: c.Logger,
	}, opts)
}

// NewRootCommand creates the root command with its global flags and every
// subcommand.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "nerrecon",
		Short: "Post-process and reconcile NER predictions",
		Long: "nerrecon turns raw span predictions into canonical document sets and\n" +
			"reconciles the outputs of several models under ensemble policies.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if cc, err := GetCLIContext(cmd); err == nil {
				cc.Close()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./nerrecon.yaml if present)")
	pf.StringVar(&opts.EnvFile, "env-file", defaultEnvFile, "dotenv file loaded before the configuration")
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "format", "f", FormatText, "result format (text, json, table)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable verbose output")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	pf.DurationVar(&opts.Timeout, "timeout", 0, "overall operation timeout (0 = none)")

	cmd.AddCommand(
		NewPostprocessCmd(),
		NewCombineCmd(),
		NewRulesCmd(),
		NewStripCmd(),
		NewRunCmd(),
		NewRunsCmd(),
		NewPoliciesCmd(),
		NewMigrateCmd(),
	)
	return cmd
}

// persistentPreRun loads the environment file, configuration and logger,
// then stores the CLIContext on the command.
func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	if err := loadEnvFile(opts.EnvFile, cmd.Flags().Changed("env-file")); err != nil {
		return err
	}

	cfg, err := initConfig(opts)
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger, err := initLogger(opts)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}

	color.NoColor = color.NoColor || opts.NoColor
	cliCtx := &CLIContext{
		Config:       cfg,
		Logger:       logger,
		OutputFormat: strings.ToLower(opts.OutputFormat),
		Verbose:      opts.Verbose,
		NoColor:      opts.NoColor,
		Timeout:      opts.Timeout,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cliCtx))
	return nil
}

// loadEnvFile loads path into the process environment without overriding
// variables already set.  A missing default file is not an error.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return fmt.Errorf("env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("env file %s: %w", path, err)
	}
	return nil
}

// initConfig loads configuration with priority: env > file > defaults.
func initConfig(opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.Load(opts.ConfigPath)
	}

	searchPaths := []string{"./nerrecon.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".nerrecon", "config.yaml"))
	}
	searchPaths = append(searchPaths, "/etc/nerrecon/config.yaml")

	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			return config.Load(p)
		}
	}
	return config.LoadFromEnv()
}

// initLogger creates a console logger on stderr so that stdout carries only
// command output.
func initLogger(opts *RootOptions) (logging.Logger, error) {
	level := opts.LogLevel
	if opts.Verbose {
		level = "debug"
	}
	return logging.NewLogger(logging.LogConfig{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// GetCLIContext extracts CLIContext from a command's context.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.New(errors.ErrCodeValidation, "command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.New(errors.ErrCodeValidation, "CLIContext not found in command context")
	}
	return cliCtx, nil
}

// commandContext returns the command context bounded by --timeout.
func commandContext(cmd *cobra.Command, cc *CLIContext) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if cc.Timeout > 0 {
		return context.WithTimeout(ctx, cc.Timeout)
	}
	return context.WithCancel(ctx)
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		PrintError(rootCmd, err)
		return 1
	}
	return 0
}

// ─────────────────────────────────────────────────────────────────────────────
// Output
// ─────────────────────────────────────────────────────────────────────────────

// tableData is implemented by results that render as a table.
type tableData interface {
	TableHeaders() []string
	TableRows() [][]string
}

// PrintResult outputs data in the format chosen with --format.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	format := FormatText
	if cc, err := GetCLIContext(cmd); err == nil {
		format = cc.OutputFormat
	}

	switch format {
	case FormatJSON:
		return printJSON(cmd.OutOrStdout(), data)
	case FormatTableOut:
		if td, ok := data.(tableData); ok {
			_, err := fmt.Fprint(cmd.OutOrStdout(), FormatTable(td.TableHeaders(), td.TableRows()))
			return err
		}
		return printText(cmd.OutOrStdout(), data)
	default:
		return printText(cmd.OutOrStdout(), data)
	}
}

func printJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printText(w io.Writer, data interface{}) error {
	switch v := data.(type) {
	case string:
		fmt.Fprintln(w, v)
	case fmt.Stringer:
		fmt.Fprintln(w, v.String())
	case tableData:
		fmt.Fprint(w, FormatTable(v.TableHeaders(), v.TableRows()))
	default:
		fmt.Fprintf(w, "%+v\n", v)
	}
	return nil
}

// PrintError writes err to stderr in red.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	color.New(color.FgRed, color.Bold).Fprint(cmd.ErrOrStderr(), "Error: ")
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
}

// PrintSuccess writes msg to stderr in green.  Success notes go to stderr so
// that stdout stays machine readable.
func PrintSuccess(cmd *cobra.Command, msg string) {
	color.New(color.FgGreen).Fprint(cmd.ErrOrStderr(), "OK: ")
	fmt.Fprintln(cmd.ErrOrStderr(), msg)
}

// FormatTable renders headers and rows as an aligned text table.
func FormatTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if len(row[i]) > widths[i] {
				widths[i] = len(row[i])
			}
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		for i := range headers {
			if i > 0 {
				sb.WriteString("  ")
			}
			val := ""
			if i < len(cells) {
				val = cells[i]
			}
			if i == len(headers)-1 {
				sb.WriteString(val)
			} else {
				sb.WriteString(padRight(val, widths[i]))
			}
		}
		sb.WriteString("\n")
	}

	writeRow(headers)
	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	writeRow(sep)
	for _, row := range rows {
		writeRow(row)
	}
	return sb.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

//Personal.AI order the ending
