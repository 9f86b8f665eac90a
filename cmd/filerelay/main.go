// Command filerelay operates one side of a point-to-point encrypted file
// transfer: an acceptor that listens for inbound connections, or a
// connector that dials out and delivers a single file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blockrelay/filerelay/pkg/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "filerelay",
		Short:         "Point-to-point encrypted file transfer",
		Long:          "filerelay moves a single file between two trusted hosts over one RSA+AES-GCM encrypted TCP connection.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Full(),
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults layered with FILERELAY_* env vars)")

	root.AddCommand(
		newServeCmd(&configPath),
		newSendCmd(&configPath),
		newKeygenCmd(&configPath),
		newWhitelistCmd(&configPath),
	)
	return root
}
