/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"fmt"

	"github.com/Zapuzallp/CASUITE-sub000/internal/auth"
	"github.com/spf13/cobra"
)

// tokenCmd 签发访问令牌,用于开发和运维脚本
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		user, _ := cmd.Flags().GetString("user")
		role, _ := cmd.Flags().GetString("role")
		name, _ := cmd.Flags().GetString("name")

		tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL())
		token, err := tokens.Issue(user, role, name)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().String("user", "", "User ID (required)")
	tokenCmd.Flags().String("role", "staff", "Role: admin, branch_manager, partner, staff")
	tokenCmd.Flags().String("name", "", "Display name")
	_ = tokenCmd.MarkFlagRequired("user")
}
