package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blockrelay/filerelay/internal/config"
	pcrypto "github.com/blockrelay/filerelay/pkg/crypto"
)

func newKeygenCmd(configPath *string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an RSA-2048 key pair at the configured paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeygen(*configPath, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing key pair")
	return cmd
}

func runKeygen(configPath string, force bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(cfg.PrivateKeyPath); err == nil {
			return fmt.Errorf("private key already exists at %s (use --force to overwrite)", cfg.PrivateKeyPath)
		}
	}

	if err := os.MkdirAll(filepath.Dir(cfg.PrivateKeyPath), 0o750); err != nil {
		return err
	}

	priv, err := pcrypto.GenerateKeyPair()
	if err != nil {
		return err
	}
	if err := pcrypto.SavePrivateKey(priv, cfg.PrivateKeyPath); err != nil {
		return err
	}
	if err := pcrypto.SavePublicKey(&priv.PublicKey, cfg.PublicKeyPath); err != nil {
		return err
	}

	fmt.Printf("generated key pair:\n  private: %s\n  public:  %s\n", cfg.PrivateKeyPath, cfg.PublicKeyPath)
	return nil
}
