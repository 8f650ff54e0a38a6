package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/storefront/internal/backup"
	"github.com/conneroisu/storefront/internal/editor"
)

var backupVendor string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Inspect and manage component backups",
	Long: `Every accepted edit saves the latest source per vendor to the backup
store. These commands read, restore and prune those backups.

Examples:
  storefront backup show --vendor-id acme
  storefront backup restore hero.component --vendor-id acme
  storefront backup prune`,
}

var backupShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the backed up source of a vendor",
	Args:  cobra.NoArgs,
	RunE:  runBackupShow,
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Write the backed up source of a vendor to a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupRestore,
}

var backupDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the backup of a vendor",
	Args:  cobra.NoArgs,
	RunE:  runBackupDelete,
}

var backupPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove backups older than the retention period",
	Args:  cobra.NoArgs,
	RunE:  runBackupPrune,
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.AddCommand(backupShowCmd, backupRestoreCmd, backupDeleteCmd, backupPruneCmd)

	backupCmd.PersistentFlags().StringVar(&backupVendor, "vendor-id", "local", "Vendor whose backup to use")
	backupCmd.PersistentFlags().String("backup-driver", "", "Backup store (memory, file, sqlite, redis)")
	backupCmd.PersistentFlags().String("backup-path", "", "Backup directory or database file")
	backupPruneCmd.Flags().Duration("retention", 0, "Override the configured retention")

	storeFlags := map[string]string{"backup.driver": "backup-driver", "backup.path": "backup-path"}
	for _, c := range []*cobra.Command{backupShowCmd, backupRestoreCmd, backupDeleteCmd} {
		c.PreRunE = bindFlags(storeFlags)
	}
	backupPruneCmd.PreRunE = bindFlags(map[string]string{
		"backup.driver":    "backup-driver",
		"backup.path":      "backup-path",
		"backup.retention": "retention",
	})
}

func withStore(fn func(store backup.Store) error) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := backup.Open(cfg.BackupStore())
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(store)
}

func runBackupShow(cmd *cobra.Command, args []string) error {
	return withStore(func(store backup.Store) error {
		entry, err := store.Load(cmd.Context(), backupVendor)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), subtleStyle.Render("saved "+entry.SavedAt.Format(time.RFC3339)))
		_, err = io.WriteString(cmd.OutOrStdout(), entry.Text)
		return err
	})
}

func runBackupRestore(cmd *cobra.Command, args []string) error {
	return withStore(func(store backup.Store) error {
		entry, err := store.Load(cmd.Context(), backupVendor)
		if err != nil {
			return err
		}
		if err := editor.WriteFile(args[0], entry.Text); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "restored %s from backup saved %s\n", args[0], entry.SavedAt.Format(time.RFC3339))
		return nil
	})
}

func runBackupDelete(cmd *cobra.Command, args []string) error {
	return withStore(func(store backup.Store) error {
		return store.Delete(cmd.Context(), backupVendor)
	})
}

func runBackupPrune(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := backup.Open(cfg.BackupStore())
	if err != nil {
		return err
	}
	defer store.Close()

	pruner, err := backup.NewPruner(store, cfg.Backup.PruneSchedule, cfg.Backup.Retention, logger)
	if err != nil {
		return err
	}
	n, err := pruner.RunOnce(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "pruned %d backup(s)\n", n)
	return nil
}
