package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-scanner/internal/config"
	"github.com/kozaktomas/face-scanner/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the review API server",
	Long: `Start the review API server.
The API exposes scanned photos, their recognition results and scan history,
and accepts corrections (approve, reject, add) over HTTP.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")
	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	server := web.NewServer(st, host, port)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	}
}
