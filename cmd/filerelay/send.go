package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blockrelay/filerelay/internal/config"
	pcrypto "github.com/blockrelay/filerelay/pkg/crypto"
	"github.com/blockrelay/filerelay/pkg/obs"
	"github.com/blockrelay/filerelay/pkg/transfer"
)

func newSendCmd(configPath *string) *cobra.Command {
	var (
		toAddr   string
		filePath string
		asName   string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Connect to an acceptor and deliver one file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(*configPath, toAddr, filePath, asName)
		},
	}
	cmd.Flags().StringVar(&toAddr, "to", "", "acceptor address (host:port)")
	cmd.Flags().StringVar(&filePath, "file", "", "path of the file to send")
	cmd.Flags().StringVar(&asName, "as", "", "filename to declare to the acceptor (defaults to the source basename)")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runSend(configPath, toAddr, filePath, asName string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.ConnectKey == "" {
		return fmt.Errorf("connect_key is not configured; set it in the config file or FILERELAY_CONNECT_KEY")
	}

	logger, collector, err := setupObservability(cfg, "connector")
	if err != nil {
		return err
	}

	priv, err := pcrypto.LoadPrivateKey(cfg.PrivateKeyPath)
	if err != nil {
		return fmt.Errorf("loading private key: %w (run 'filerelay keygen' first)", err)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filePath, err)
	}

	if asName == "" {
		asName = filepath.Base(filePath)
	}

	observer := obs.NewTransferObserver(logger, collector)
	session, conn, err := transfer.Dial("tcp", toAddr, transfer.DialConfig{
		LocalPrivateKey: priv,
		ConnectKey:      cfg.ConnectKey,
		Observer:        observer,
		IOTimeout:       cfg.IOTimeout,
	})
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", toAddr, err)
	}
	defer func() { _ = conn.Close() }()

	if err := transfer.Send(conn, session, data, asName); err != nil {
		return fmt.Errorf("sending %s: %w", filePath, err)
	}

	logger.Info("transfer delivered", obs.Fields{"to": toAddr, "file": asName, "bytes": len(data)})
	return nil
}
