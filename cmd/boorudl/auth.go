package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"boorudl/pkg/auth"
	"boorudl/pkg/config"
	"boorudl/pkg/logger"
	"boorudl/pkg/sites"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage imageboard credentials",
	Long: `Manage stored imageboard credentials.

Credentials are validated against the site, then cached under the config
directory. When a system keyring is available the API key is stored there
as well.

Only danbooru and e621 support authentication.`,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Validate and store credentials for a source",
	Long: `Validate credentials against the site's profile endpoint and store them
for later runs. You will be prompted for the username and the API key.

The API key is found in your account settings on the site, not your
password.`,
	Example: `  boorudl auth login -s danbooru
  boorudl auth login -s e621`,
	RunE: runLogin,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored account for a source",
	RunE:  runStatus,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored credentials for a source",
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(statusCmd)
	authCmd.AddCommand(logoutCmd)

	authCmd.PersistentFlags().StringVarP(&sourceName, "source", "s", "danbooru", "imageboard the credentials belong to")
}

func runLogin(cmd *cobra.Command, args []string) error {
	board, err := sites.Parse(sourceName)
	if err != nil {
		return err
	}
	if !board.HasAuth() {
		return fmt.Errorf("%s does not support authentication", board)
	}

	log := logger.GetLogger()

	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("%s username: ", board)
	username, err := reader.ReadString('\n')
	if err != nil {
		return err
	}
	username = strings.TrimSpace(username)

	fmt.Print("API key: ")
	keyBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return err
	}
	apiKey := strings.TrimSpace(string(keyBytes))

	cfg := config.DefaultConfig()
	client := sites.NewClient(board, cfg.Download.Timeout, cfg.Download.MaxRetries, log)

	creds, err := auth.Authenticate(cmd.Context(), board, client, username, apiKey, log)
	if err != nil {
		return err
	}

	if err := auth.SaveCache(creds); err != nil {
		return err
	}
	auth.StoreKey(board.String(), username, apiKey, log)

	fmt.Printf("Logged in to %s as %s (%d blacklisted tags)\n",
		board, creds.User.Name, len(creds.User.BlacklistedTags))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	board, err := sites.Parse(sourceName)
	if err != nil {
		return err
	}

	creds := auth.LoadCache(board.String(), logger.GetLogger())
	if creds == nil {
		fmt.Printf("No stored credentials for %s\n", board)
		return nil
	}

	fmt.Printf("Source:           %s\n", creds.Imageboard)
	fmt.Printf("Username:         %s\n", creds.Username)
	fmt.Printf("User ID:          %d\n", creds.User.ID)
	fmt.Printf("Blacklisted tags: %d\n", len(creds.User.BlacklistedTags))
	if auth.LookupKey(board.String(), creds.Username) != "" {
		fmt.Println("API key:          cached and in system keyring")
	} else {
		fmt.Println("API key:          cached")
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	board, err := sites.Parse(sourceName)
	if err != nil {
		return err
	}

	log := logger.GetLogger()
	if creds := auth.LoadCache(board.String(), log); creds != nil {
		auth.ForgetKey(board.String(), creds.Username, log)
	}
	if err := auth.DeleteCache(board.String()); err != nil {
		return err
	}

	fmt.Printf("Credentials for %s removed\n", board)
	return nil
}
