package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"mediashelf/internal/models"
	"mediashelf/internal/sharing"
)

func newUsersCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage remote users of the sharing server",
	}
	cmd.AddCommand(
		newUsersListCommand(ctx),
		newUsersAddCommand(ctx),
		newUsersPermsCommand(ctx),
		newUsersActiveCommand(ctx, "revoke", "Deny a user access without deleting it", false),
		newUsersActiveCommand(ctx, "enable", "Restore access for a revoked user", true),
		newUsersRemoveCommand(ctx),
	)
	return cmd
}

// parsePermissions accepts repeated or comma separated scope names
func parsePermissions(values []string) (models.PermissionSet, error) {
	var perms models.PermissionSet
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			p, err := models.ParsePermission(part)
			if err != nil {
				return nil, err
			}
			perms = append(perms, p)
		}
	}
	if len(perms) == 0 {
		return nil, errors.New("at least one permission is required")
	}
	return perms.Normalized(), nil
}

func renderUsers(users []models.SharedUser) string {
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		status := "active"
		if !u.IsActive {
			status = "revoked"
		}
		rows = append(rows, []string{
			u.ID,
			u.Nickname,
			strings.Join(u.Permissions.Strings(), ","),
			status,
			formatTime(u.LastAccessAt),
		})
	}
	return renderTable([]string{"ID", "Nickname", "Permissions", "Status", "Last Access"}, rows, nil)
}

func newUsersListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List remote users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withUsers(func(users *sharing.UserService, _ *gorm.DB) error {
				list, err := users.ListUsers(cmd.Context())
				if err != nil {
					return err
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No remote users.")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderUsers(list))
				return nil
			})
		},
	}
}

func newUsersAddCommand(ctx *commandContext) *cobra.Command {
	var perms []string

	cmd := &cobra.Command{
		Use:   "add <nickname>",
		Short: "Create a remote user and print its token pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := parsePermissions(perms)
			if err != nil {
				return err
			}
			return ctx.withUsers(func(users *sharing.UserService, _ *gorm.DB) error {
				user, err := users.AddUser(cmd.Context(), args[0], set)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Created user %s (%s)\n", user.Nickname, user.ID)
				printTokens(out, user)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&perms, "perm", []string{string(models.PermissionReadOnly)}, "Permission scope (READ_ONLY, EDIT, UPLOAD, DOWNLOAD, FULL)")
	return cmd
}

func newUsersPermsCommand(ctx *commandContext) *cobra.Command {
	var perms []string

	cmd := &cobra.Command{
		Use:   "perms <id>",
		Short: "Replace a user's permissions and reissue its access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := parsePermissions(perms)
			if err != nil {
				return err
			}
			return ctx.withUsers(func(users *sharing.UserService, _ *gorm.DB) error {
				user, err := users.UpdatePermissions(cmd.Context(), args[0], set)
				if err != nil {
					return err
				}
				if user == nil {
					return fmt.Errorf("user %s not found", args[0])
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Updated %s: %s\n", user.Nickname, strings.Join(user.Permissions.Strings(), ","))
				printTokens(out, user)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&perms, "perm", nil, "Permission scope, repeatable")
	_ = cmd.MarkFlagRequired("perm")
	return cmd
}

func newUsersActiveCommand(ctx *commandContext, use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withUsers(func(users *sharing.UserService, _ *gorm.DB) error {
				found, err := users.SetActive(cmd.Context(), args[0], active)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("user %s not found", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "User %s %sd\n", args[0], use)
				return nil
			})
		},
	}
}

func newUsersRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a remote user",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withUsers(func(users *sharing.UserService, _ *gorm.DB) error {
				deleted, err := users.DeleteUser(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("user %s not found", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %s\n", args[0])
				return nil
			})
		},
	}
}
