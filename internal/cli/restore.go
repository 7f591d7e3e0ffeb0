package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eargollo/frisk/internal/backup"
)

func newRestoreCmd(a *app) *cobra.Command {
	var (
		ext    string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "restore [--ext EXT] PATH...",
		Short: "Put back the backups written by a replace",
		Long: `Restore each FILE from FILE.<ext>. A directory restores every backup
found below it. The backup file is moved back over the original.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ext == "" {
				ext = a.store.Get().Search.BackupExtension
			}
			ext = strings.TrimPrefix(ext, ".")

			var files []string
			for _, p := range args {
				info, err := os.Stat(p)
				if err == nil && info.IsDir() {
					found, err := backup.Find(cmd.Context(), p, ext)
					if err != nil {
						return err
					}
					files = append(files, found...)
					continue
				}
				files = append(files, strings.TrimSuffix(p, "."+ext))
			}

			out := cmd.OutOrStdout()
			var failed int
			for _, f := range files {
				if dryRun {
					fmt.Fprintf(out, "would restore %s\n", f)
					continue
				}
				if err := backup.Restore(f, ext); err != nil {
					failed++
					if errors.Is(err, backup.ErrNoBackup) {
						fmt.Fprintf(cmd.ErrOrStderr(), "no backup for %s\n", f)
					} else {
						fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
					}
					continue
				}
				fmt.Fprintf(out, "restored %s\n", f)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files not restored", failed, len(files))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&ext, "ext", "", "backup extension (default from config)")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "list what would be restored")
	return cmd
}
