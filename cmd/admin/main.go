// Package main provides operator utilities for the confession board.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"confessional/internal/action"
	"confessional/internal/bootstrap"
	"confessional/internal/config"
	"confessional/internal/models"
	"confessional/internal/service"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var operatorID int64

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "admin",
	Short:        "Moderate the confession board from a shell",
	SilenceUsage: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().Int64Var(&operatorID, "as", 0, "operator user id to act as (defaults to the first ADMIN_IDS entry)")

	blockCmd.Flags().String("reason", "", "reason recorded with the block")

	rootCmd.AddCommand(listAdminsCmd, pendingCmd, approveCmd, rejectCmd, autoApproveCmd,
		blockCmd, unblockCmd, blockedCmd, maintenanceCmd)
}

// open wires the service graph the way the server does.
func open(ctx context.Context) (*bootstrap.App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	db, rdb, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		return nil, err
	}
	app, err := bootstrap.Build(cfg, db, rdb, bootstrap.Deps{})
	if err != nil {
		return nil, err
	}
	if operatorID == 0 {
		if len(app.Admins) == 0 {
			return nil, errors.New("no operator: set ADMIN_IDS or pass --as")
		}
		operatorID = app.Admins[0]
	}
	return app, nil
}

// dispatch runs an action as the operator so the router enforces the admin check.
func dispatch(cmd *cobra.Command, kind action.Kind, targetRef string, payload any) (any, error) {
	app, err := open(cmd.Context())
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if payload != nil {
		if raw, err = json.Marshal(payload); err != nil {
			return nil, err
		}
	}
	return app.Router.Dispatch(cmd.Context(), action.Request{
		Kind:      kind,
		Payload:   raw,
		TargetRef: targetRef,
		ActorID:   operatorID,
	})
}

func parseUserArg(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", arg)
	}
	return id, nil
}

var listAdminsCmd = &cobra.Command{
	Use:   "list-admins",
	Short: "List configured operator ids",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		ids, err := cfg.AdminIDList()
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Println("No operators configured (ADMIN_IDS is empty)")
			return nil
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List confessions awaiting review",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		result, err := dispatch(cmd, action.PendingList, "", nil)
		if err != nil {
			return err
		}
		pending, _ := result.([]models.Confession)
		if len(pending) == 0 {
			fmt.Println("Nothing pending")
			return nil
		}
		for _, c := range pending {
			fmt.Printf("%s  %-12s  %v\n    %s\n", c.ID, humanize.Time(c.CreatedAt), c.Tags, preview(c.Text))
		}
		return nil
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve <confession-id>",
	Short: "Approve and publish a pending confession",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := dispatch(cmd, action.Approve, args[0], nil)
		if err != nil {
			return err
		}
		approval, ok := result.(*service.ApproveResult)
		if !ok || approval.Confession == nil || approval.Confession.Number == nil {
			fmt.Printf("✅ Approved %s\n", args[0])
			return nil
		}
		fmt.Printf("✅ Approved #%d as %s after %d attempt(s)\n",
			*approval.Confession.Number, approval.PublishedRef, approval.Attempts)
		return nil
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject <confession-id>",
	Short: "Reject and delete a pending confession",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := dispatch(cmd, action.Reject, args[0], nil); err != nil {
			return err
		}
		fmt.Printf("❌ Rejected %s\n", args[0])
		return nil
	},
}

var autoApproveCmd = &cobra.Command{
	Use:   "toggle-auto-approve",
	Short: "Flip the auto-approve switch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		result, err := dispatch(cmd, action.ToggleAutoApprove, "", nil)
		if err != nil {
			return err
		}
		fmt.Printf("auto-approve: %s\n", onOff(result))
		return nil
	},
}

var blockCmd = &cobra.Command{
	Use:   "block <user-id>",
	Short: "Block a user from every action",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseUserArg(args[0])
		if err != nil {
			return err
		}
		reason, _ := cmd.Flags().GetString("reason")
		if _, err := dispatch(cmd, action.BlockUser, "", map[string]any{"user_id": userID, "reason": reason}); err != nil {
			return err
		}
		fmt.Printf("🚫 Blocked %d\n", userID)
		return nil
	},
}

var unblockCmd = &cobra.Command{
	Use:   "unblock <user-id>",
	Short: "Lift a block",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseUserArg(args[0])
		if err != nil {
			return err
		}
		if _, err := dispatch(cmd, action.UnblockUser, "", map[string]any{"user_id": userID}); err != nil {
			return err
		}
		fmt.Printf("Unblocked %d\n", userID)
		return nil
	},
}

var blockedCmd = &cobra.Command{
	Use:   "blocked",
	Short: "List blocked users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := open(cmd.Context())
		if err != nil {
			return err
		}
		blocked, err := app.Services.Moderation.ListBlocked(cmd.Context())
		if err != nil {
			return err
		}
		for _, b := range blocked {
			fmt.Printf("%d  by %d  %s  %s\n", b.UserID, b.BlockedBy, humanize.Time(b.CreatedAt), b.Reason)
		}
		return nil
	},
}

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Purge expired drafts and retry unpublished approvals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := open(cmd.Context())
		if err != nil {
			return err
		}
		purged, republished, err := app.Maintenance(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("purged %s drafts, republished %s confessions\n",
			humanize.Comma(purged), humanize.Comma(int64(republished)))
		return nil
	},
}

func onOff(result any) string {
	b, err := json.Marshal(result)
	if err != nil {
		return "unknown"
	}
	var flag struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.Unmarshal(b, &flag); err != nil {
		return "unknown"
	}
	if flag.Enabled {
		return "on"
	}
	return "off"
}

func preview(text string) string {
	r := []rune(text)
	if len(r) <= 80 {
		return text
	}
	return string(r[:79]) + "…"
}
