package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gzn7264/ai-travel-planner/internal/kv"
	"github.com/gzn7264/ai-travel-planner/internal/output"
	"github.com/gzn7264/ai-travel-planner/internal/remote"
	"github.com/gzn7264/ai-travel-planner/internal/syncconfig"
)

var authCmd = &cobra.Command{
	Use:     "auth",
	Short:   "Manage the account changes are synced to",
	GroupID: "sync",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with an API key",
	Long: `Store an API key for the sync server. Changes made while logged out
stay queued and are sent once you log in.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		serverURL, _ := cmd.Flags().GetString("server")
		if serverURL == "" {
			serverURL = syncconfig.GetServerURL()
		}
		key, _ := cmd.Flags().GetString("key")
		if key == "" {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				output.Error("--key is required when stdin is not a terminal")
				return errors.New("api key required")
			}
			if err := promptKey(&key); err != nil {
				return err
			}
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return errors.New("api key required")
		}

		if verify, _ := cmd.Flags().GetBool("verify"); verify {
			ctx, cancel := context.WithTimeout(cmd.Context(), syncconfig.GetRequestTimeout())
			_, err := remote.NewClient(serverURL, key, 0).HealthCheck(ctx)
			cancel()
			if err != nil {
				output.Warning("server not reachable, changes will sync once it is: %v", err)
			}
		}

		userID, _ := cmd.Flags().GetString("user")
		email, _ := cmd.Flags().GetString("email")
		creds := &syncconfig.AuthCredentials{
			APIKey:    key,
			UserID:    userID,
			Email:     email,
			ServerURL: serverURL,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if err := syncconfig.SaveAuth(creds); err != nil {
			output.Error("save credentials: %v", err)
			return err
		}
		output.Success("Logged in to %s", serverURL)

		if !kv.Exists(getBaseDir()) {
			return nil
		}
		e, err := openEngine()
		if err != nil {
			return err
		}
		if !e.HasPendingChanges() {
			return nil
		}
		st, err := e.SyncNow(cmd.Context())
		if err != nil {
			output.Warning("sync: %v", err)
			return nil
		}
		if st.Pending > 0 {
			output.Warning("%d changes still waiting: %s", st.Pending, st.LastError)
		} else {
			output.Success("Queued changes saved to the cloud.")
		}
		return nil
	},
}

func promptKey(key *string) error {
	return huh.NewInput().
		Title("API key").
		EchoMode(huh.EchoModePassword).
		Value(key).
		Run()
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored API key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := syncconfig.ClearAuth(); err != nil {
			output.Error("logout: %v", err)
			return err
		}
		fmt.Println("Logged out.")

		if !kv.Exists(getBaseDir()) {
			return nil
		}
		e, err := openEngine()
		if err != nil {
			return err
		}
		e.Session().Logout()
		if st := e.SyncStatus(); st.Pending > 0 {
			output.Warning("%d changes stay queued until you log in again", st.Pending)
		}
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := syncconfig.LoadAuth()
		if err != nil {
			output.Error("load auth: %v", err)
			return err
		}

		key := syncconfig.GetAPIKey()
		if key == "" {
			fmt.Println("Not logged in.")
			return nil
		}

		keyPrefix := key
		if len(keyPrefix) > 12 {
			keyPrefix = keyPrefix[:12] + "..."
		}
		if creds != nil && creds.Email != "" {
			fmt.Printf("Email:  %s\n", creds.Email)
		}
		if creds != nil && creds.UserID != "" {
			fmt.Printf("User:   %s\n", creds.UserID)
		}
		fmt.Printf("Server: %s\n", syncconfig.GetServerURL())
		fmt.Printf("Key:    %s\n", keyPrefix)
		return nil
	},
}

func init() {
	authLoginCmd.Flags().String("key", "", "API key (prompted for when omitted)")
	authLoginCmd.Flags().String("server", "", "Sync server URL")
	authLoginCmd.Flags().String("user", "", "User id")
	authLoginCmd.Flags().String("email", "", "Email")
	authLoginCmd.Flags().Bool("verify", true, "Check that the server is reachable")

	authCmd.AddCommand(authLoginCmd, authLogoutCmd, authStatusCmd)
	rootCmd.AddCommand(authCmd)
}
