package commands

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"wifi-qr-scanner/internal/diagnostics"
	"wifi-qr-scanner/internal/domain"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the camera, wireless tooling and settings directory",
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	store, settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	checker := diagnostics.NewChecker(diagnostics.DefaultPaths(filepath.Dir(store.Path())))
	report := checker.Run(settings)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-20s %-6s %s\n", "CHECK", "STATUS", "DETAIL")
	fmt.Fprintln(out, "------------------------------------------------------------------------")
	for _, item := range report.Items {
		fmt.Fprintf(out, "%-20s %-6s %s\n", item.Name, item.Status, item.Message)
		if item.Status == domain.DiagnosticStatusFail && item.Hint != "" {
			fmt.Fprintf(out, "%-20s %-6s %s\n", "", "", item.Hint)
		}
	}

	if report.HasFailures {
		return errors.New("one or more checks failed")
	}
	return nil
}
