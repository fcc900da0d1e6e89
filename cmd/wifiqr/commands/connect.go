package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"wifi-qr-scanner/internal/connector"
	"wifi-qr-scanner/internal/domain"
	"wifi-qr-scanner/internal/jobs"
	"wifi-qr-scanner/internal/wifiqr"
	"wifi-qr-scanner/internal/wireless"
)

var (
	connectSSID     string
	connectPassword string
	connectPayload  string
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to a network without the camera",
	Long: `Runs the connect workflow for a network given by --ssid/--password or by a
WIFI: payload. All stored wireless profiles are removed first.`,
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().StringVar(&connectSSID, "ssid", "", "Network name")
	connectCmd.Flags().StringVar(&connectPassword, "password", "", "Network passphrase")
	connectCmd.Flags().StringVar(&connectPayload, "payload", "", "WIFI: QR payload text")
	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, args []string) error {
	cred, err := credentialFromFlags()
	if err != nil {
		return err
	}

	_, settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	manager := jobs.NewManager()
	events := jobs.NewEventBus(200)
	var dispatcher *jobs.Dispatcher
	iface, err := wireless.New(settings.Backend, settings.Interface, wireless.WithCommandLog(func(log wireless.CommandLog) {
		dispatcher.PublishCommand(log)
	}))
	if err != nil {
		return err
	}
	dispatcher = jobs.NewDispatcher(manager, events, connector.New(iface, connector.ConfigFromSettings(settings)))
	dispatcher.OnEvent(eventPrinter(cmd.OutOrStdout()))

	if _, err := dispatcher.Dispatch(cred); err != nil {
		return err
	}
	dispatcher.Wait()

	if current := manager.Current(); current.Status != domain.AttemptStatusConnected {
		slog.Debug("connect_finished", "ssid", current.SSID, "status", current.Status)
		return fmt.Errorf("could not connect to %q", cred.SSID)
	}
	return nil
}

func credentialFromFlags() (domain.Credential, error) {
	if connectPayload != "" {
		cred, ok := wifiqr.Parse(connectPayload)
		if !ok {
			return domain.Credential{}, errNotWifiPayload
		}
		return cred, nil
	}
	if connectSSID == "" {
		return domain.Credential{}, errors.New("--ssid or --payload is required")
	}
	return domain.Credential{SSID: connectSSID, Password: connectPassword}, nil
}

