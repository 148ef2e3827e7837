package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/darkkid0/wt-tracker/internal/errors"
)

func explainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain [code]",
		Short: "Describe an error code",
		Long: `Describe an error code printed by wt-tracker, or list every code.

Examples:
  wt-tracker explain
  wt-tracker explain E200`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, code := range errors.GetAllCodes() {
					tmpl, _ := errors.GetTemplate(code)
					fmt.Fprintf(out, "%s  %-9s  %s\n", code, tmpl.Category, tmpl.Message)
				}
				return nil
			}

			code := strings.ToUpper(args[0])
			tmpl, ok := errors.GetTemplate(code)
			if !ok {
				return errors.New(errors.CodeInvalidFlag).
					WithDetail(fmt.Sprintf("%s is not a wt-tracker error code. Run 'wt-tracker explain' for the list.", args[0]))
			}

			fmt.Fprintf(out, "%s: %s (%s)\n", code, tmpl.Message, tmpl.Category)
			if tmpl.Detail != "" {
				fmt.Fprintf(out, "\n  %s\n", tmpl.Detail)
			}
			if tmpl.Suggestion != "" {
				fmt.Fprintf(out, "\n  Hint: %s\n", tmpl.Suggestion)
			}
			fmt.Fprintf(out, "\n  %s\n", tmpl.DocURL)
			return nil
		},
	}
}
