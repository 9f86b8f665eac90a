package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blockrelay/filerelay/internal/config"
	"github.com/blockrelay/filerelay/pkg/auth"
)

func newWhitelistCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whitelist",
		Short: "Manage the authorized connect-key store",
	}
	cmd.AddCommand(
		newWhitelistAddCmd(configPath),
		newWhitelistCountCmd(configPath),
	)
	return cmd
}

func newWhitelistAddCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "add <connect-key>",
		Short: "Authorize a connect key, creating the whitelist file if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if _, statErr := os.Stat(cfg.WhitelistPath); os.IsNotExist(statErr) {
				if err := os.WriteFile(cfg.WhitelistPath, nil, 0o600); err != nil {
					return fmt.Errorf("creating whitelist %s: %w", cfg.WhitelistPath, err)
				}
			}
			store, err := auth.Load(cfg.WhitelistPath)
			if err != nil {
				return err
			}
			if err := store.Add(args[0]); err != nil {
				return err
			}
			fmt.Printf("authorized connect key (whitelist now has %d entries)\n", store.Len())
			return nil
		},
	}
}

func newWhitelistCountCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of authorized connect keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			store, err := auth.Load(cfg.WhitelistPath)
			if err != nil {
				return err
			}
			fmt.Println(store.Len())
			return nil
		},
	}
}
