package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/saintparish4/voicepunch/internal/session"
	"github.com/saintparish4/voicepunch/internal/signaling"
)

var roomsServer string

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List the rooms currently open on the rendezvous server",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := session.Dial(stringDefault(cmd, "server", roomsServer, cfg.Server))
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.ListRooms(); err != nil {
			return err
		}

		timeout := time.After(5 * time.Second)
		for {
			select {
			case msg, ok := <-client.Messages():
				if !ok {
					return errors.New("connection closed before a reply arrived")
				}
				if msg.Type != signaling.MessageTypeRooms {
					continue
				}
				if len(msg.Rooms) == 0 {
					fmt.Println("no open rooms")
					return nil
				}
				for _, room := range msg.Rooms {
					fmt.Println(room)
				}
				return nil
			case <-timeout:
				return errors.New("timed out waiting for the room list")
			}
		}
	},
}

func init() {
	roomsCmd.Flags().StringVar(&roomsServer, "server", "ws://localhost:8080/ws", "rendezvous server WebSocket URL")
	rootCmd.AddCommand(roomsCmd)
}
