package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or save effective settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print settings after file, env and flag overrides",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, settings, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(settings)
	},
}

var settingsSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Write the effective settings to the settings file",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, settings, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		if err := store.Save(settings); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", store.Path())
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSaveCmd)
	rootCmd.AddCommand(settingsCmd)
}
