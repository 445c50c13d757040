package command

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"campuscare/internal/api/models"
	"campuscare/internal/client"
	"campuscare/internal/sync/bus"
	"campuscare/internal/sync/msgsync"
	"campuscare/internal/sync/socket"
)

// chat.go = interactive messaging with live delivery and read receipts.

var chatCmd = &cobra.Command{
	Use:   "chat <peer-user-id>",
	Short: "Open a live conversation with another user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		peerID := args[0]

		creds, err := loadCredentials()
		if err != nil {
			return err
		}
		httpClient := client.New(apiURL)
		httpClient.SetToken(creds.Token)

		sock := socket.Default()
		sock.SetEndpoint(httpClient.WSEndpoint(), nil)

		b := bus.New()
		store := msgsync.NewStore(httpClient.Messages(), creds.UserID, msgsync.Options{
			Bus:    b,
			Socket: sock,
		})
		defer store.Close()

		startCtx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		err = store.Start(startCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to start message sync: %w", err)
		}

		openCtx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		err = store.OpenConversation(openCtx, peerID)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to open conversation: %w", err)
		}

		state := store.Snapshot()
		// Stored newest-first; replay oldest-first for reading.
		for i := len(state.Messages) - 1; i >= 0; i-- {
			printMessage(state.Messages[i], creds.UserID)
		}

		off := b.Subscribe(bus.MessageNew, func(ev bus.Event) {
			if m, ok := ev.Payload.(models.Message); ok && m.SenderID != creds.UserID {
				printMessage(m, creds.UserID)
			}
		})
		defer off()

		fmt.Printf("\n✅ Connected! Type your messages (or /quit to exit)\n\n")

		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)

		go func() {
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				text := scanner.Text()
				if text == "/quit" {
					interrupt <- os.Interrupt
					return
				}
				if text == "" {
					continue
				}
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				_, err := store.SendMessage(ctx, peerID, text)
				cancel()
				if err != nil {
					color.Red("send failed: %v", err)
				}
			}
		}()

		<-interrupt
		fmt.Println("Closing connection...")
		return nil
	},
}

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List your recent conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := loadCredentials()
		if err != nil {
			return err
		}
		httpClient := client.New(apiURL)
		httpClient.SetToken(creds.Token)

		store := msgsync.NewStore(httpClient.Messages(), creds.UserID, msgsync.Options{})
		defer store.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		if err := store.RefreshConversations(ctx); err != nil {
			return fmt.Errorf("failed to load conversations: %w", err)
		}

		for _, conv := range store.Snapshot().Conversations {
			badge := ""
			if conv.UnreadCount > 0 {
				badge = fmt.Sprintf(" (%d unread)", conv.UnreadCount)
			}
			fmt.Printf("%s [%s] %s%s\n    %s - %s\n", conv.UserID, conv.Role, conv.Name, badge,
				conv.LastMessage, conv.LastAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

func printMessage(m models.Message, selfID string) {
	stamp := m.CreatedAt.Format("15:04")
	if m.SenderID == selfID {
		receipt := ""
		if m.Read {
			receipt = " ✓✓"
		}
		color.Green("[%s] me: %s%s", stamp, m.Content, receipt)
	} else {
		color.Cyan("[%s] them: %s", stamp, m.Content)
	}
}

func init() {
	chatCmd.AddCommand(conversationsCmd)
	rootCmd.AddCommand(chatCmd)
}
