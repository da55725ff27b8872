package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/saintparish4/voicepunch/internal/signaling"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the rendezvous server",
	Long: `Runs the rendezvous server peers register with. The WebSocket signaling
endpoint is served at /ws and a plain liveness page at /.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		listen := stringDefault(cmd, "listen", serveListen, cfg.Listen)
		srv := signaling.NewServer(listen)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigCh
			logrus.WithField("signal", sig.String()).Info("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()

		return srv.Start()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", ":8080", "TCP listen address")
	rootCmd.AddCommand(serveCmd)
}
