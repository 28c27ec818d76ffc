package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"mediashelf/internal/models"
	"mediashelf/internal/sharing"
	"mediashelf/internal/tokenauth"
)

func printTokens(out io.Writer, user *models.SharedUser) {
	fmt.Fprintf(out, "  X-User-Token:  %s\n", user.UserToken)
	fmt.Fprintf(out, "  Authorization: Bearer %s\n", user.AccessToken)
}

func newTokenCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "token <id>",
		Short: "Print the token pair a remote user connects with",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withUsers(func(users *sharing.UserService, _ *gorm.DB) error {
				user, err := users.GetUser(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if user == nil {
					return fmt.Errorf("user %s not found", args[0])
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s (%s)\n", user.Nickname, user.ID)
				printTokens(out, user)

				v := tokenauth.NewValidator()
				if err := v.ValidateUserToken(user.UserToken); err != nil {
					fmt.Fprintf(out, "warning: user token is not accepted: %v\n", err)
				}
				if err := v.ValidateAccessToken(user.AccessToken); err != nil {
					fmt.Fprintf(out, "warning: access token is not accepted: %v\n", err)
				}
				if !user.IsActive {
					fmt.Fprintln(out, "warning: user is revoked")
				}
				return nil
			})
		},
	}
}
