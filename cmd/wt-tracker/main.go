package main

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/darkkid0/wt-tracker/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootOptions are the flags shared by every command.
type rootOptions struct {
	noColor     bool
	errorFormat string
}

func main() {
	opts := &rootOptions{}
	if err := rootCmd(opts).Execute(); err != nil {
		errors.FprintStyle(os.Stderr, err, opts.errorFormat)
		os.Exit(1)
	}
}

func rootCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "wt-tracker",
		Short: "WebTorrent tracker over WebSockets",
		Long: `wt-tracker is a WebTorrent tracker.

Peers announce over WebSockets; the tracker keeps swarms in memory and
relays WebRTC offers and answers between peers of the same swarm.

  • Several plain and TLS listeners sharing one tracker
  • Origin allow and deny lists
  • Prometheus metrics and a JSON stats endpoint`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			errors.SetColors(!opts.noColor && os.Getenv("NO_COLOR") == "")
			if !slices.Contains(errors.Styles(), opts.errorFormat) {
				bad := opts.errorFormat
				opts.errorFormat = errors.StyleText
				return errors.New(errors.CodeInvalidFlag).
					WithDetail(fmt.Sprintf("--error-format %q is not one of %s.", bad, strings.Join(errors.Styles(), ", ")))
			}
			return nil
		},
	}

	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output (also NO_COLOR)")
	root.PersistentFlags().StringVar(&opts.errorFormat, "error-format", errors.StyleText,
		"Error output: "+strings.Join(errors.Styles(), ", "))

	root.AddCommand(
		serveCmd(),
		initCmd(),
		explainCmd(),
		versionCmd(),
	)
	return root
}

// success prints a success message.
func success(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", fmt.Sprintf(format, args...))
}
