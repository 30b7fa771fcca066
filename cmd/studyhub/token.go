package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavelanni/studyhub/internal/handler"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token for a user",
		RunE:  runToken,
	}
	f := cmd.Flags()
	f.String("jwt-secret", "", "HS256 secret shared with the server (or set STUDYHUB_JWT_SECRET)")
	f.StringP("user", "u", "", "User id placed in the token subject (required)")
	f.Bool("admin", false, "Grant access to the admin endpoints")
	f.Duration("ttl", 30*24*time.Hour, "Token lifetime")
	addLogFlags(cmd, "warn")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runToken(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	tok, err := handler.IssueToken(v.GetString("jwt-secret"), v.GetString("user"), v.GetBool("admin"), v.GetDuration("ttl"))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
	return err
}
