/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docregistry/apiserver/config"
	"github.com/docregistry/apiserver/internal/db"
	"github.com/docregistry/apiserver/internal/services"
	"github.com/docregistry/apiserver/internal/store"
)

var userCreateInput services.RegisterInput

// userCmd groups identity administration.
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage registry identities",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an identity, typically the first clerk",
	Long: `Create an identity directly in the database. The password is read from
the DOCREGISTRY_PASSWORD environment variable or, if unset, from stdin.

	docregistry user create --username admin --email admin@example.org --clerk
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		password := os.Getenv("DOCREGISTRY_PASSWORD")
		if password == "" {
			fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return errors.New("password is required")
			}
			password = strings.TrimRight(line, "\r\n")
		}
		userCreateInput.Password = password

		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		users := services.NewUserService(store.NewUserRepository(conn), nil)
		user, err := users.Register(cmd.Context(), userCreateInput)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created user %d (%s, clerk=%t)\n", user.ID, user.Email, user.Clerk)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	f := userCreateCmd.Flags()
	f.StringVar(&userCreateInput.Username, "username", "", "login name")
	f.StringVar(&userCreateInput.DisplayName, "display-name", "", "name shown in the UI")
	f.StringVar(&userCreateInput.Email, "email", "", "email used to log in")
	f.StringVar(&userCreateInput.Division, "division", "", "office division")
	f.BoolVar(&userCreateInput.Clerk, "clerk", false, "grant the clerk role")
	_ = userCreateCmd.MarkFlagRequired("username")
	_ = userCreateCmd.MarkFlagRequired("email")
	userCmd.AddCommand(userCreateCmd)
}
