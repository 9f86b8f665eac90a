package main

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blockrelay/filerelay/internal/config"
	qerrors "github.com/blockrelay/filerelay/internal/errors"
	"github.com/blockrelay/filerelay/pkg/auth"
	pcrypto "github.com/blockrelay/filerelay/pkg/crypto"
	"github.com/blockrelay/filerelay/pkg/obs"
	"github.com/blockrelay/filerelay/pkg/transfer"
)

// whitelistReadableCheck fails if the connect-key whitelist backing store
// can no longer be opened, catching a whitelist file removed or made
// unreadable out from under a running acceptor.
func whitelistReadableCheck(path string) obs.CheckFunc {
	return func() error {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		return f.Close()
	}
}

func newServeCmd(configPath *string) *cobra.Command {
	var obsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the acceptor: listen for connections and receive files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath, obsAddr)
		},
	}
	cmd.Flags().StringVar(&obsAddr, "obs-addr", "", "address for the /metrics and /health endpoints; empty disables")
	return cmd
}

func runServe(configPath, obsAddr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, collector, err := setupObservability(cfg, "acceptor")
	if err != nil {
		return err
	}

	priv, err := pcrypto.LoadPrivateKey(cfg.PrivateKeyPath)
	if err != nil {
		return fmt.Errorf("loading private key: %w (run 'filerelay keygen' first)", err)
	}

	store, err := auth.Load(cfg.WhitelistPath)
	if err != nil {
		return fmt.Errorf("loading whitelist: %w", err)
	}
	logger.Info("whitelist loaded", obs.Fields{"authorized_keys": store.Len()})

	observer := obs.NewTransferObserver(logger, collector)
	sink := newDirSink(cfg.ReceivedDir)

	listener, err := transfer.Listen("tcp", cfg.ListenAddress, transfer.Config{
		KeyPair:            priv,
		Store:              store,
		Observer:           observer,
		IOTimeout:          cfg.IOTimeout,
		HandshakeRateLimit: cfg.HandshakeRateLimit,
		HandshakeBurst:     cfg.HandshakeBurst,
	})
	if err != nil {
		return fmt.Errorf("starting listener: %w", err)
	}
	defer func() { _ = listener.Close() }()

	logger.Info("acceptor listening", obs.Fields{"addr": listener.Addr().String()})

	if obsAddr != "" {
		srv := obs.NewServer(obs.ServerConfig{
			Collector:        collector,
			Version:          "filerelay",
			Namespace:        "filerelay",
			EnablePrometheus: true,
			EnableHealth:     true,
		})
		srv.AddHealthCheck("whitelist_readable", whitelistReadableCheck(cfg.WhitelistPath))
		go func() {
			if err := srv.ListenAndServe(obsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("observability server error", obs.Fields{"error": err.Error()})
			}
		}()
		logger.Info("observability server listening", obs.Fields{"addr": obsAddr})
	}

	var shuttingDown atomic.Bool
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down", nil)
		shuttingDown.Store(true)
		_ = listener.Close()
	}()

	err = listener.Serve(func(session *transfer.Session, conn net.Conn) {
		defer func() { _ = conn.Close() }()
		if err := transfer.Receive(conn, session, sink, ""); err != nil {
			fields := obs.Fields{obs.FieldRemoteAddr: session.RemoteAddr.String(), obs.FieldError: err.Error()}
			if kind, ok := qerrors.KindOf(err); ok {
				fields[obs.FieldKind] = kind.String()
			}
			logger.Warn("transfer failed", fields)
		}
	})
	if shuttingDown.Load() && errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
