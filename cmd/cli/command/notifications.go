package command

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"campuscare/internal/api/models"
	"campuscare/internal/client"
	"campuscare/internal/sync/alert"
	"campuscare/internal/sync/bus"
	"campuscare/internal/sync/notifysync"
	"campuscare/internal/sync/socket"
)

// notifications.go = notification listing, live watch, and read-marking.

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Work with your notifications",
}

var notificationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your notifications, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := newNotificationStore(nil)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		if err := store.Refresh(ctx); err != nil {
			return fmt.Errorf("failed to load notifications: %w", err)
		}

		state := store.Snapshot()
		fmt.Printf("Unread: %d / %d total\n\n", state.UnreadCount, state.Stats.Total)
		for _, n := range state.Notifications {
			printNotification(n)
		}
		return nil
	},
}

var notificationsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch notifications arrive live",
	RunE: func(cmd *cobra.Command, args []string) error {
		b := bus.New()
		store, _, err := newNotificationStore(b)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		if err := store.Start(ctx); err != nil {
			cancel()
			return fmt.Errorf("failed to start notification sync: %w", err)
		}
		cancel()

		// The store rebroadcasts socket arrivals; printing off the bus
		// shows exactly what sibling instances would apply.
		off := b.Subscribe(bus.NotificationNew, func(ev bus.Event) {
			if n, ok := ev.Payload.(models.Notification); ok {
				printNotification(n)
			}
		})
		defer off()

		fmt.Printf("✅ Connected. Watching notifications (%d unread). Ctrl-C to stop.\n\n", store.UnreadCount())

		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)
		<-interrupt
		fmt.Println("Closing connection...")
		return nil
	},
}

var notificationsReadCmd = &cobra.Command{
	Use:   "read <notification-id>",
	Short: "Mark a notification as read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := newNotificationStore(nil)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		if err := store.MarkAsRead(ctx, args[0]); err != nil {
			return fmt.Errorf("failed to mark as read: %w", err)
		}
		fmt.Println("✓ Marked as read.")
		return nil
	},
}

var notificationsReadAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark all fetched notifications as read",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := newNotificationStore(nil)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		if err := store.Fetch(ctx, notifysync.ListParams{}); err != nil {
			return fmt.Errorf("failed to load notifications: %w", err)
		}
		if err := store.MarkAllAsRead(ctx); err != nil {
			return fmt.Errorf("failed to mark all as read: %w", err)
		}
		fmt.Println("✓ All fetched notifications marked as read.")
		return nil
	},
}

// newNotificationStore wires a store against the configured API server
// with the stored credentials. A nil bus means no cross-instance sync is
// needed for the command.
func newNotificationStore(b *bus.Bus) (*notifysync.Store, *client.HTTPClient, error) {
	creds, err := loadCredentials()
	if err != nil {
		return nil, nil, err
	}
	httpClient := client.New(apiURL)
	httpClient.SetToken(creds.Token)

	var sock *socket.Manager
	if b != nil {
		sock = socket.Default()
		sock.SetEndpoint(httpClient.WSEndpoint(), nil)
	}

	gate := alert.NewGate(promptForAlerts, alert.TerminalNotifier{})
	store := notifysync.NewStore(httpClient.Notifications(), notifysync.Options{
		Bus:    b,
		Socket: sock,
		Alerts: gate,
	})
	store.RequestAlertPermission()
	return store, httpClient, nil
}

func promptForAlerts() bool {
	fmt.Print("Show alert banners for new notifications? [y/N] ")
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}

func printNotification(n models.Notification) {
	marker := " "
	if n.Unread() {
		marker = "●"
	}
	line := fmt.Sprintf("%s [%s] %s - %s (%s)", marker, n.Severity, n.Title, n.Message, n.CreatedAt.Format("2006-01-02 15:04"))
	switch n.Severity {
	case models.SeverityHigh:
		color.Red(line)
	case models.SeverityMedium:
		color.Yellow(line)
	default:
		color.Cyan(line)
	}
}

func init() {
	notificationsCmd.AddCommand(notificationsListCmd, notificationsWatchCmd, notificationsReadCmd, notificationsReadAllCmd)
	rootCmd.AddCommand(notificationsCmd)
}
