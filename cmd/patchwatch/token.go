package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func (a *app) tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the release API token in the OS keyring",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set [TOKEN]",
		Short: "Store the API token (reads stdin when no argument is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read token from stdin: %w", err)
				}
				token = line
			}
			token = strings.TrimSpace(token)
			if token == "" {
				return errors.New("token must not be empty")
			}

			k := a.keyring()
			if err := k.Store(token); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Token stored in keyring (%s/%s)\n", k.Service, k.User)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the stored API token",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			k := a.keyring()
			if err := k.Store(""); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Token removed from keyring (%s/%s)\n", k.Service, k.User)
			return nil
		},
	})
	return cmd
}
