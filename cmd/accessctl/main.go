// Command accessctl inspects and edits the bot's access store directly.
// Changes made here are not announced to users on Telegram.
package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"translate-tg-bot/internal/access"
	"translate-tg-bot/internal/config"
)

var (
	store   access.Store
	adminID int64

	rootCmd = &cobra.Command{
		Use:           "accessctl",
		Short:         "Manage who may use the translate bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadForStore()
			if err != nil {
				return err
			}
			s, err := access.Open(cfg.Storage, access.WithPendingTTL(cfg.Approval.PendingTTL))
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			store = s
			adminID = cfg.Telegram.AdminUserID
			if adminID != 0 {
				if err := store.SetAdmin(adminID); err != nil {
					return err
				}
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if store == nil {
				return nil
			}
			return store.Close()
		},
	}
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
)

func init() {
	rootCmd.AddCommand(pendingCmd, approvedCmd, bannedCmd, statusCmd, approveCmd, denyCmd, banCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List open access requests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pending, err := store.ListPending()
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			printLine(cmd, yellow, "No pending requests")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "USER ID\tUSERNAME\tNAME\tREQUESTED\tNOTIFIED\tREQUEST ID")
		for _, req := range pending {
			notified := "no"
			if req.NotifiedAt != nil {
				notified = formatTime(*req.NotifiedAt)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
				req.UserID, req.Username, req.FirstName, formatTime(req.RequestedAt), notified, req.RequestID)
		}
		return w.Flush()
	},
}

var approvedCmd = &cobra.Command{
	Use:   "approved",
	Short: "List approved users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		users, err := store.ListApproved()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "USER ID\tUSERNAME\tAPPROVED\tBY")
		for _, u := range users {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", u.UserID, u.Username, formatTime(u.ApprovedAt), u.ApprovedBy)
		}
		return w.Flush()
	},
}

var bannedCmd = &cobra.Command{
	Use:   "banned",
	Short: "List banned users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		users, err := store.ListBanned()
		if err != nil {
			return err
		}
		if len(users) == 0 {
			printLine(cmd, yellow, "No banned users")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "USER ID\tBANNED\tBY")
		for _, u := range users {
			fmt.Fprintf(w, "%d\t%s\t%d\n", u.UserID, formatTime(u.BannedAt), u.BannedBy)
		}
		return w.Flush()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <user_id>",
	Short: "Show the access status of a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		status, err := store.Status(userID)
		if err != nil {
			return err
		}

		switch status {
		case access.StatusApproved:
			printLine(cmd, green, "%d: %s", userID, status)
		case access.StatusBanned:
			printLine(cmd, red, "%d: %s", userID, status)
		case access.StatusPending:
			printLine(cmd, yellow, "%d: %s", userID, status)
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "%d: %s\n", userID, status)
		}
		return nil
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve <user_id>",
	Short: "Approve a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		if err := store.Approve(userID, adminID); err != nil {
			return err
		}
		printLine(cmd, green, "✓ approved %d", userID)
		return nil
	},
}

var denyCmd = &cobra.Command{
	Use:   "deny <user_id>",
	Short: "Drop a user's pending request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		has, err := store.HasPending(userID)
		if err != nil {
			return err
		}
		if !has {
			printLine(cmd, yellow, "%d has no pending request", userID)
			return nil
		}
		if err := store.Deny(userID); err != nil {
			return err
		}
		printLine(cmd, green, "✓ denied %d", userID)
		return nil
	},
}

var banCmd = &cobra.Command{
	Use:   "ban <user_id>",
	Short: "Ban a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		if err := store.Ban(userID, adminID); err != nil {
			return err
		}
		printLine(cmd, red, "✗ banned %d", userID)
		return nil
	},
}

// printLine writes one colored line to the command's output
func printLine(cmd *cobra.Command, c *color.Color, format string, a ...any) {
	c.Fprintf(cmd.OutOrStdout(), format+"\n", a...)
}

func parseUserID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", arg)
	}
	return id, nil
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}
