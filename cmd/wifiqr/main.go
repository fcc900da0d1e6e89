package main

import (
	"log/slog"
	"os"

	"wifi-qr-scanner/cmd/wifiqr/commands"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: commands.LogLevel,
	}))
	slog.SetDefault(logger)

	commands.Execute()
}
