package command

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zalando/go-keyring"
)

var apiURL string // global flag for API server URL

const (
	keyringService = "campuscare-cli"
	keyringTokenID = "auth_token"
)

// storedCredentials is what the CLI keeps in the OS keyring between
// invocations.
type storedCredentials struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

var rootCmd = &cobra.Command{
	Use:   "campuscare",
	Short: "campuscare - CampusCare Command Line Interface",
	Long: `campuscare is a tool for interacting with the CampusCare API server.
It lets counselors and students work with their notifications and
messages from a terminal:
- List notifications and watch them arrive live
- Mark notifications read, individually or in bulk
- Chat with another user with live message delivery and read receipts

Use "campuscare <command> --help" to see all available commands.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "http://localhost:8080", "API server URL")
}

func storeCredentials(creds *storedCredentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	return keyring.Set(keyringService, keyringTokenID, string(data))
}

func loadCredentials() (*storedCredentials, error) {
	value, err := keyring.Get(keyringService, keyringTokenID)
	if err != nil {
		return nil, fmt.Errorf("not logged in (run 'campuscare auth login'): %w", err)
	}
	var creds storedCredentials
	if err := json.Unmarshal([]byte(value), &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

func deleteCredentials() error {
	return keyring.Delete(keyringService, keyringTokenID)
}
