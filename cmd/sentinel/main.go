package main

import (
	"encoding/json"
	"fmt"
	"os"
	"syscall"

	"github.com/Thirdegree/TheSentinel/internal/app"
	"github.com/Thirdegree/TheSentinel/internal/config"
	"github.com/Thirdegree/TheSentinel/internal/sentinel"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a SentinelApp. The caller must defer
// app.Close(). operation identifies the CLI command being run.
func newApp(operation string) (*app.SentinelApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewSentinelApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// readPassphrase prompts for a passphrase without echoing it.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(pass), nil
}

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Community moderation bot for blacklisted media channels",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		agentID := uuid.New().String()
		cfg := config.NewConfig(agentID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Agent ID: %s\n", agentID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Agent ID:   %s\n", cfg.AgentID)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Cache Size: %d\n", cfg.Cache.Size)
		return nil
	},
}

// blacklist command
var blacklistCmd = &cobra.Command{
	Use:   "blacklist",
	Short: "Manage the channel blacklist",
}

var blacklistAddCmd = &cobra.Command{
	Use:   "add COMMUNITY PLATFORM CHANNEL_ID ACTOR",
	Short: "Ban a channel for a community",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Blacklist")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.AddBlacklist(args[0], args[1], args[2], args[3]); err != nil {
			return fmt.Errorf("adding blacklist entry: %w", err)
		}

		fmt.Printf("Blacklisted %s/%s in %s\n", args[1], args[2], args[0])
		return nil
	},
}

var blacklistRemoveCmd = &cobra.Command{
	Use:   "remove COMMUNITY PLATFORM CHANNEL_ID ACTOR",
	Short: "Lift a ban, keeping it in the history",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Unblacklist")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RemoveBlacklist(args[0], args[1], args[2], args[3]); err != nil {
			return fmt.Errorf("removing blacklist entry: %w", err)
		}

		fmt.Printf("Unblacklisted %s/%s in %s\n", args[1], args[2], args[0])
		return nil
	},
}

var blacklistCheckCmd = &cobra.Command{
	Use:   "check COMMUNITY",
	Short: "Check whether a channel or author is banned",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		channelID, _ := cmd.Flags().GetString("channel")
		author, _ := cmd.Flags().GetString("author")
		platform, _ := cmd.Flags().GetString("platform")

		a, err := newApp("CheckBlacklist")
		if err != nil {
			return err
		}
		defer a.Close()

		banned, err := a.CheckBlacklist(args[0], sentinel.BlacklistQuery{
			ChannelID: channelID,
			Author:    author,
			Platform:  platform,
		})
		if err != nil {
			return err
		}

		if banned {
			fmt.Println("blacklisted")
		} else {
			fmt.Println("clear")
		}
		return nil
	},
}

var blacklistListCmd = &cobra.Command{
	Use:   "list",
	Short: "View active blacklist entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ActiveBlacklist")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.ActiveBlacklist()
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No active blacklist entries.")
			return nil
		}

		for _, e := range entries {
			fmt.Printf("%-20s  %-10s  %-30s  by %s at %s\n",
				e.Community,
				e.Platform,
				e.ChannelID,
				e.AddedBy,
				e.AddedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return nil
	},
}

var blacklistHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "View removed blacklist entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("BlacklistHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.BlacklistHistory()
		if err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println("No removed blacklist entries.")
			return nil
		}

		for _, r := range records {
			fmt.Printf("%-20s  %-10s  %-30s  added by %s, removed by %s at %s\n",
				r.Community,
				r.Platform,
				r.ChannelID,
				r.AddedBy,
				r.RemovedBy,
				r.RemovedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return nil
	},
}

// submit command
var submitCmd = &cobra.Command{
	Use:   "submit FILENAME",
	Short: "Process a batch of content items from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading batch file: %w", err)
		}

		var raw []sentinel.RawItem
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parsing batch file: %w", err)
		}

		a, err := newApp("ProcessBatch")
		if err != nil {
			return err
		}
		defer a.Close()

		decisions, err := a.ProcessBatch(cmd.Context(), raw)
		if err != nil {
			return fmt.Errorf("processing batch: %w", err)
		}

		for _, d := range decisions {
			verdict := "clear"
			if d.Blacklisted {
				verdict = "blacklisted"
			}
			fmt.Printf("%-12s  %-40s  %s\n", d.ThingID, d.Reference.Identity, verdict)
		}
		return nil
	},
}

// resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve URL",
	Short: "Resolve a media URL to its identity and owning channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ResolveChannel")
		if err != nil {
			return err
		}
		defer a.Close()

		identity, channel, err := a.ResolveChannel(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("resolving url: %w", err)
		}

		fmt.Printf("Identity: %s\n", identity)
		if channel.IsZero() {
			fmt.Println("Channel:  (unavailable)")
		} else {
			fmt.Printf("Channel:  %s\n", channel)
		}
		return nil
	},
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Upload a blacklist audit snapshot to the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ExportAudit")
		if err != nil {
			return err
		}
		defer a.Close()

		version, err := a.ExportAudit()
		if err != nil {
			return fmt.Errorf("exporting audit archive: %w", err)
		}

		fmt.Printf("Exported audit archive version %d\n", version)
		return nil
	},
}

// credentials command
var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage sealed bot credentials",
}

var credentialsSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Generate the encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("SetupEncryption")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readPassphrase("Passphrase for new private key: ")
		if err != nil {
			return err
		}

		if err := a.SetupEncryption(passphrase); err != nil {
			return fmt.Errorf("setting up encryption: %w", err)
		}

		fmt.Println("Encryption keys generated.")
		return nil
	},
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Seal bot credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		clientID, _ := cmd.Flags().GetString("client-id")

		a, err := newApp("SealCredentials")
		if err != nil {
			return err
		}
		defer a.Close()

		password, err := readPassphrase("Bot account password: ")
		if err != nil {
			return err
		}
		clientSecret, err := readPassphrase("API client secret: ")
		if err != nil {
			return err
		}

		creds := &app.Credentials{
			Username:     username,
			Password:     password,
			ClientID:     clientID,
			ClientSecret: clientSecret,
		}
		if err := a.SealCredentials(creds); err != nil {
			return fmt.Errorf("sealing credentials: %w", err)
		}

		fmt.Println("Credentials sealed.")
		return nil
	},
}

var credentialsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show sealed credentials (passwords redacted)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("OpenCredentials")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readPassphrase("Private key passphrase: ")
		if err != nil {
			return err
		}

		creds, err := a.OpenCredentials(passphrase)
		if err != nil {
			return fmt.Errorf("opening credentials: %w", err)
		}

		fmt.Printf("Username:  %s\n", creds.Username)
		fmt.Printf("Client ID: %s\n", creds.ClientID)
		fmt.Println("Password:  (set)")
		fmt.Println("Secret:    (set)")
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// blacklist subcommands
	blacklistCmd.AddCommand(blacklistAddCmd)
	blacklistCmd.AddCommand(blacklistRemoveCmd)
	blacklistCmd.AddCommand(blacklistCheckCmd)
	blacklistCheckCmd.Flags().String("channel", "", "Channel external ID")
	blacklistCheckCmd.Flags().String("author", "", "Content author name")
	blacklistCheckCmd.Flags().String("platform", "", "Restrict the check to one platform")
	blacklistCmd.AddCommand(blacklistListCmd)
	blacklistCmd.AddCommand(blacklistHistoryCmd)

	// credentials subcommands
	credentialsCmd.AddCommand(credentialsSetupCmd)
	credentialsCmd.AddCommand(credentialsSetCmd)
	credentialsSetCmd.Flags().String("username", "", "Bot account username")
	credentialsSetCmd.Flags().String("client-id", "", "API client ID")
	credentialsCmd.AddCommand(credentialsShowCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(blacklistCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(credentialsCmd)
}
