package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newClearCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the current session on the backend and locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClear(cmd.Context(), v, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func runClear(ctx context.Context, v *viper.Viper, stdout, stderr io.Writer) (err error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}
	logger, logCloser, err := newLogger(cfg, stderr)
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

	id := a.ctrl.SessionID()
	if err := a.ctrl.Reset(ctx); err != nil {
		return err
	}
	if err := a.store.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Cleared session %s\n", id)
	return nil
}

func newSessionsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List stored sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessions(cmd.Context(), v, cmd.OutOrStdout())
		},
	}
}

func runSessions(ctx context.Context, v *viper.Viper, stdout io.Writer) error {
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}
	store, closer, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	list, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(stdout, "No stored sessions.")
		return nil
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SESSION", "TURNS", "UPDATED")
	for _, s := range list {
		t.Row(s.ID, strconv.Itoa(s.Turns), s.UpdatedAt.Local().Format(time.DateTime))
	}
	fmt.Fprintln(stdout, t.Render())
	return nil
}
