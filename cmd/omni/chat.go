package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fwojciec/omni"
	bt "github.com/fwojciec/omni/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func newChatCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), v, cmd.ErrOrStderr())
		},
	}
}

// runChat runs the TUI next to the history saver. The session is saved once
// more when the TUI exits.
func runChat(ctx context.Context, v *viper.Viper, stderr io.Writer) (err error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}
	logger, logCloser, err := newLogger(cfg, nil)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close())
	}()
	a.checkBoot(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	tuiUpdates, err := a.bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	saveUpdates, err := a.bus.Subscribe(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.persist(gctx, saveUpdates)
	})
	g.Go(func() error {
		defer cancel()
		m := bt.New(a.ctrl, tuiUpdates, omni.DefaultTheme(), bt.WithAssetResolver(a.client.AssetURL))
		if err := bt.Run(gctx, m); err != nil {
			return fmt.Errorf("TUI: %w", err)
		}
		return nil
	})
	runErr := g.Wait()

	saved, err := a.saveFinal()
	if err != nil {
		return errors.Join(runErr, err)
	}
	if saved {
		fmt.Fprintf(stderr, "Session %s saved\n", a.ctrl.SessionID())
	}
	return runErr
}
