package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"matscout-engine/internal/secrets"
)

func buildSecretCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage API keys in the OS keyring",
	}
	cmd.AddCommand(buildSecretSetCommand(), buildSecretDeleteCommand())
	return cmd
}

func buildSecretSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <" + accountNames() + ">",
		Short: "Store an API key (value read from stdin, never from argv)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, ok := secrets.ByName[args[0]]
			if !ok {
				return fmt.Errorf("unknown account %q (want %s)", args[0], accountNames())
			}

			value, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && value == "" {
				return fmt.Errorf("read secret from stdin: %w", err)
			}
			if err := secrets.Set(account, strings.TrimSpace(value)); err != nil {
				return err
			}
			fmt.Printf("stored %s in keyring service %q\n", account, secrets.KeyringService)
			return nil
		},
	}
}

func buildSecretDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <" + accountNames() + ">",
		Short: "Remove an API key from the keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, ok := secrets.ByName[args[0]]
			if !ok {
				return fmt.Errorf("unknown account %q (want %s)", args[0], accountNames())
			}
			if err := secrets.Delete(account); err != nil {
				return err
			}
			fmt.Printf("removed %s from keyring service %q\n", account, secrets.KeyringService)
			return nil
		},
	}
}

func accountNames() string {
	names := make([]string, 0, len(secrets.ByName))
	for n := range secrets.ByName {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}
