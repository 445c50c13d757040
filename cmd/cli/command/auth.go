package command

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"campuscare/internal/api/dto"
	"campuscare/internal/client"
)

// auth.go handles authentication commands: login, register, logout.

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication commands",
	Long:  `Authenticate with the CampusCare API server. Supports login, registration, logout.`,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new CampusCare account",
	RunE: func(cmd *cobra.Command, args []string) error {
		var req dto.RegisterRequest
		req.Email, _ = cmd.Flags().GetString("email")
		req.Password, _ = cmd.Flags().GetString("password")
		req.Name, _ = cmd.Flags().GetString("name")
		req.Role, _ = cmd.Flags().GetString("role")

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		httpClient := client.New(apiURL)
		response, err := httpClient.Register(ctx, req)
		if err != nil {
			return fmt.Errorf("registration failed: %w", err)
		}

		fmt.Println("✓ Registration successful! Please login to continue.")
		fmt.Printf("UserID: %s\n", response.User.ID)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Login to your CampusCare account",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		httpClient := client.New(apiURL)
		response, err := httpClient.Login(ctx, email, password)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		if err := storeCredentials(&storedCredentials{
			Token:  response.Token,
			UserID: response.User.ID,
			Name:   response.User.Name,
			Role:   response.User.Role,
		}); err != nil {
			return fmt.Errorf("failed to store credentials: %w", err)
		}

		fmt.Printf("✓ Logged in as %s (%s)\n", response.User.Name, response.User.Role)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Logout and forget stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := deleteCredentials(); err != nil {
			return fmt.Errorf("logout failed: %w", err)
		}
		fmt.Println("✓ Logged out.")
		return nil
	},
}

func init() {
	registerCmd.Flags().String("email", "", "account email")
	registerCmd.Flags().String("password", "", "account password")
	registerCmd.Flags().String("name", "", "display name")
	registerCmd.Flags().String("role", "student", "account role (student or guidance)")
	registerCmd.MarkFlagRequired("email")
	registerCmd.MarkFlagRequired("password")
	registerCmd.MarkFlagRequired("name")

	loginCmd.Flags().String("email", "", "account email")
	loginCmd.Flags().String("password", "", "account password")
	loginCmd.MarkFlagRequired("email")
	loginCmd.MarkFlagRequired("password")

	authCmd.AddCommand(registerCmd, loginCmd, logoutCmd)
	rootCmd.AddCommand(authCmd)
}
