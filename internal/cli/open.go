package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/eargollo/frisk/internal/editor"
)

func newOpenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "open FILE [LINE]",
		Short: "Open a file at a line with the configured command template",
		Long: `Open FILE with the search.cmd_template of the config file. The
placeholders !FILENAME! and !LINE! are replaced before the command runs.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			line := 1
			if len(args) == 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil || n < 1 {
					return fmt.Errorf("invalid line %q", args[1])
				}
				line = n
			}
			c, err := editor.Command(cmd.Context(), a.store.Get().Search.CmdTemplate, args[0], line)
			if err != nil {
				return err
			}
			c.Stdin = cmd.InOrStdin()
			c.Stdout = cmd.OutOrStdout()
			c.Stderr = cmd.ErrOrStderr()
			return c.Run()
		},
	}
}
