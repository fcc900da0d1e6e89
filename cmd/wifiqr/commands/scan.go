package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"wifi-qr-scanner/internal/capture"
	"wifi-qr-scanner/internal/feed"
	"wifi-qr-scanner/internal/jobs"
	"wifi-qr-scanner/internal/session"
)

var (
	scanAutoConfirm bool
	scanListen      string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Watch the camera for WiFi QR codes and connect",
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().BoolVarP(&scanAutoConfirm, "yes", "y", false, "Connect without asking")
	scanCmd.Flags().StringVar(&scanListen, "listen", "", "Serve state and events on this address, e.g. 127.0.0.1:8765")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	_, settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	var confirmer capture.Confirmer = capture.AcceptAll
	if !scanAutoConfirm {
		confirmer = newPromptConfirmer(cmd.InOrStdin(), cmd.OutOrStdout())
	}

	manager := jobs.NewManager()
	events := jobs.NewEventBus(1000)
	s, err := session.New(settings, manager, events, confirmer, platformDeps())
	if err != nil {
		return err
	}
	s.Dispatcher.OnEvent(eventPrinter(cmd.OutOrStdout()))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if scanListen != "" {
		server := feed.NewServer(events, s.Loop.State, manager.Current)
		go func() {
			if err := server.ListenAndServe(ctx, scanListen); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "feed: %v\n", err)
			}
		}()
	}

	if err := s.Start(ctx); err != nil {
		s.Close()
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Scanning on camera %d. Press Ctrl+C to stop.\n", settings.CameraIndex)

	<-ctx.Done()
	s.Close()
	if manager.IsRunning() {
		fmt.Fprintln(cmd.OutOrStdout(), "Waiting for the connection attempt to finish...")
	}
	s.Wait()
	return nil
}
