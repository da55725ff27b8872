package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/saintparish4/voicepunch/internal/media"
	"github.com/saintparish4/voicepunch/internal/session"
)

var (
	callServer    string
	callRoom      string
	callID        string
	callBindIP    string
	callBindPort  int
	callInputDev  int
	callOutputDev int
)

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Join a room and talk to the peer that shows up",
	Long: `Registers into a room on the rendezvous server and waits for a peer.
Once one appears, both NATs are punched and audio streams directly between
the peers over UDP. Lines typed on stdin are sent as chat over the
signaling connection; incoming chat is printed.

Audio devices are addressed by integer id. This build uses the loopback
audio backend; applications embed the session package with their own
device provider.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		room := stringDefault(cmd, "room", callRoom, cfg.Room)
		if room == "" {
			return errors.New("a room is required (--room or config file)")
		}

		id := stringDefault(cmd, "id", callID, cfg.ID)
		if id == "" {
			id = uuid.NewString()[:8]
		}

		stop := &session.StopFlag{}
		outbound := make(chan string, 16)

		sess, err := session.Start(session.Options{
			ServerURL:    stringDefault(cmd, "server", callServer, cfg.Server),
			Room:         room,
			ID:           id,
			BindIP:       stringDefault(cmd, "bind-ip", callBindIP, cfg.BindIP),
			BindPort:     intDefault(cmd, "bind-port", callBindPort, cfg.BindPort),
			InputDevice:  intDefault(cmd, "input-device", callInputDev, cfg.InputDevice),
			OutputDevice: intDefault(cmd, "output-device", callOutputDev, cfg.OutputDevice),
			Devices:      media.NewLoopbackProvider(),
			Stop:         stop,
			OnChat: func(from, text string) {
				fmt.Printf("[%s] %s\n", from, text)
			},
			Outbound: outbound,
		})
		if err != nil {
			return err
		}

		fmt.Printf("registered as %q, waiting for a peer (Ctrl-C to quit)\n", id)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigCh
			stop.Set()
		}()

		// Stdin lines become chat. Reading may outlive the session; the
		// process exits right after Wait either way.
		go func() {
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				outbound <- line
			}
			close(outbound)
		}()

		err = sess.Wait()
		if errors.Is(err, session.ErrNoPeerFound) {
			fmt.Println("no peer found")
			return nil
		}
		return err
	},
}

func init() {
	callCmd.Flags().StringVar(&callServer, "server", "ws://localhost:8080/ws", "rendezvous server WebSocket URL")
	callCmd.Flags().StringVar(&callRoom, "room", "", "room name to join")
	callCmd.Flags().StringVar(&callID, "id", "", "peer id (default: random)")
	callCmd.Flags().StringVar(&callBindIP, "bind-ip", "", "local UDP bind address (default: all interfaces)")
	callCmd.Flags().IntVar(&callBindPort, "bind-port", 0, "local UDP bind port (0 = auto)")
	callCmd.Flags().IntVar(&callInputDev, "input-device", 0, "input audio device id")
	callCmd.Flags().IntVar(&callOutputDev, "output-device", 0, "output audio device id")
	rootCmd.AddCommand(callCmd)
}
