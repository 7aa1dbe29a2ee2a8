package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dosekeeper/internal/app"
)

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Encrypted database backups",
}

var backupInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the backup key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		pass, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Repeat passphrase: ")
		if err != nil {
			return err
		}
		if pass != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		a, err := newApp("BackupInit")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.BackupInit(pass); err != nil {
			a.Fail()
			return err
		}
		fmt.Println("Backup keys created. Keep the passphrase safe: it is needed to restore.")
		return nil
	},
}

var backupRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Upload an encrypted snapshot of the database to every vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("BackupRun")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Backup(cmd.Context())
		if err != nil {
			a.Fail()
			return err
		}
		fmt.Printf("Backup %d (%d bytes) stored in %s\n", res.Version, res.Size, strings.Join(res.Vaults, ", "))
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Download and decrypt the latest backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		vaultName, _ := cmd.Flags().GetString("vault")
		dest, _ := cmd.Flags().GetString("dest")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		pass, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}

		version, err := app.RestoreDatabase(cmd.Context(), cfg, vaultName, pass, dest)
		if err != nil {
			return err
		}
		fmt.Printf("Restored backup %d\n", version)
		return nil
	},
}

func init() {
	backupRestoreCmd.Flags().String("vault", "", "Vault to restore from (default: the first configured)")
	backupRestoreCmd.Flags().String("dest", "", "Write the database here instead of the configured path")

	backupCmd.AddCommand(backupInitCmd)
	backupCmd.AddCommand(backupRunCmd)
	backupCmd.AddCommand(backupRestoreCmd)
}
