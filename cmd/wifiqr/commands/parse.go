package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"wifi-qr-scanner/internal/wifiqr"
)

var errNotWifiPayload = errors.New("not a WiFi QR payload")

var parseJSON bool

var parseCmd = &cobra.Command{
	Use:   "parse PAYLOAD",
	Short: "Decode a WIFI: QR payload",
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

func init() {
	parseCmd.Flags().BoolVar(&parseJSON, "json", false, "Print JSON")
	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	cred, ok := wifiqr.Parse(args[0])
	if !ok {
		return errNotWifiPayload
	}

	out := cmd.OutOrStdout()
	if parseJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(cred)
	}
	fmt.Fprintf(out, "SSID:     %s\n", cred.SSID)
	fmt.Fprintf(out, "Password: %s\n", cred.Password)
	return nil
}
