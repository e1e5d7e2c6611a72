package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/crypto/bandersnatch"
	"github.com/eigerco/jamtarget/internal/statetransition"
	"github.com/eigerco/jamtarget/internal/store"
	"github.com/eigerco/jamtarget/pkg/conformance"
	"github.com/eigerco/jamtarget/pkg/db/pebble"
	"github.com/eigerco/jamtarget/pkg/log"
)

var (
	appVersion = conformance.Version{Major: 0, Minor: 1, Patch: 0}
	jamVersion = conformance.Version{Major: 0, Minor: 6, Patch: 7}
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "jamtarget",
		Short:         "JAM state transition conformance target",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	buildFlagSet(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		v, err := newViper(cmd.Flags())
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, loadConfig(v))
	}
	return cmd
}

func run(ctx context.Context, cfg config) error {
	level, err := log.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	loggerType, err := log.ParseLoggerType(cfg.LogType)
	if err != nil {
		return err
	}
	log.Init(log.Options{
		LogLevel:    level,
		Type:        loggerType,
		DebugSteps:  cfg.DebugSteps,
		DebugTraces: cfg.DebugTraces,
		DebugFS:     cfg.DebugFS,
	})

	verifier, err := newVerifier(cfg.BandersnatchLib)
	if err != nil {
		return err
	}

	db, err := pebble.NewKVStore()
	if err != nil {
		return fmt.Errorf("failed to create kv store: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Root.Error().Err(err).Msg("error closing database")
		}
	}()

	spec := chainspec.FromName(cfg.Constants)
	transition := statetransition.New(spec, verifier, statetransition.Options{CheckWallClock: cfg.CheckWallClock})
	chain := store.NewChain(db, transition.BlockCodecs())
	history := store.NewHistory(store.NewTrie(db), cfg.HistorySize)

	log.Root.Info().
		Str("constants", cfg.Constants).
		Uint16("validators", spec.NumberOfValidators).
		Uint16("cores", spec.NumberOfCores).
		Int("history_size", cfg.HistorySize).
		Msg("starting conformance target")

	node := conformance.NewNode(cfg.SocketPath, transition, chain, history, conformance.PeerInfo{
		Name:       []byte("jamtarget"),
		AppVersion: appVersion,
		JamVersion: jamVersion,
	})
	return node.Start(ctx)
}

func newVerifier(libPath string) (bandersnatch.Verifier, error) {
	if libPath == "" {
		log.Root.Warn().Msg("no bandersnatch library configured, signatures are not verified")
		return bandersnatch.Insecure{}, nil
	}
	native, err := bandersnatch.Load(libPath)
	if err != nil {
		return nil, fmt.Errorf("load bandersnatch library: %w", err)
	}
	return native, nil
}
