package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"wifi-qr-scanner/internal/config"
	"wifi-qr-scanner/internal/domain"
)

// LogLevel is raised to debug by --verbose.
var LogLevel = new(slog.LevelVar)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "wifiqr",
	Short: "Join WiFi networks by scanning their QR codes",
	Long: `Scans WiFi QR codes with a camera and connects the host to the network.

Connecting removes every stored wireless profile on this host before adding
the scanned one. Previously saved networks are not restored.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			LogLevel.Set(slog.LevelDebug)
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	defaults := config.DefaultSettings()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", config.DefaultPath(), "Settings file path")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log wireless commands and decoder activity")
	flags.Int("camera-index", defaults.CameraIndex, "Camera device index")
	flags.String("backend", defaults.Backend, "Wireless backend (nmcli or wpa_cli)")
	flags.String("interface", defaults.Interface, "Wireless interface, empty for the first one found")
	flags.Duration("capture-interval", defaults.CaptureInterval, "Frame capture period")
	flags.Duration("settle-delay", defaults.SettleDelay, "Pause after disconnecting")
	flags.Duration("poll-interval", defaults.PollInterval, "Pause between association checks")
	flags.Int("poll-attempts", defaults.PollAttempts, "Association checks before timing out")
	flags.Bool("derive-psk", defaults.DerivePSK, "Store the derived PSK instead of the passphrase")
}

// loadSettings layers flags over env and the settings file.
func loadSettings(cmd *cobra.Command) (*config.FileStore, domain.Settings, error) {
	store := config.NewFileStore(configPath)
	store.BindFlags(cmd.Flags())

	settings, err := store.Load()
	if err != nil {
		return nil, domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return store, settings, nil
}
