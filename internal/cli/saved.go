package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/eargollo/frisk/internal/config"
)

func newSavedCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saved",
		Short: "Manage saved searches",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved searches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			saved := a.store.Get().SavedSearches
			if len(saved) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No saved searches.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tPATH\tFILESPEC\tMATCH\tREPLACE\tSCHEDULE")
			for _, s := range saved {
				replace := "-"
				if s.Flags.Replace {
					replace = fmt.Sprintf("%q", s.Replace)
				}
				schedule := s.Schedule
				if schedule == "" {
					schedule = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%q\t%s\t%s\n", s.Name, s.Path, s.Filespec, s.Match, replace, schedule)
			}
			return tw.Flush()
		},
	})

	run := newSearchCmd(a)
	run.Use = "run NAME [flags]"
	run.Short = "Run a saved search"
	run.Long = "Run a saved search. Search flags override the saved values."
	run.Args = cobra.ExactArgs(1)
	runE := run.RunE
	run.RunE = func(cmd *cobra.Command, args []string) error {
		if err := cmd.Flags().Set("saved", args[0]); err != nil {
			return err
		}
		return runE(cmd, nil)
	}
	cmd.AddCommand(run)

	del := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a saved search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.store.Update(func(c *config.Config) error {
				return c.DeleteSaved(args[0])
			})
		},
	}
	cmd.AddCommand(del)

	sched := &cobra.Command{
		Use:   "schedule NAME CRON",
		Short: `Run a saved search on a cron schedule under "frisk serve" ("" to clear)`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			schedule := args[1]
			if schedule != "" {
				if _, err := cron.ParseStandard(schedule); err != nil {
					return fmt.Errorf("invalid cron expression %q: %w", schedule, err)
				}
			}
			return a.store.Update(func(c *config.Config) error {
				s, err := c.FindSaved(args[0])
				if err != nil {
					return err
				}
				s.Schedule = schedule
				c.PutSaved(s)
				return nil
			})
		},
	}
	cmd.AddCommand(sched)
	return cmd
}
