package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fwojciec/omni"
	"github.com/fwojciec/omni/goldmark"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// settleCheck is how often ask re-reads the turn while waiting for it to
// settle, in case a status update was dropped.
const settleCheck = 250 * time.Millisecond

func newAskCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <text>",
		Short: "Run one turn and print the result",
		Long:  `ask sends text as one chat turn, waits until its media has been reconciled, and prints the answer text followed by each block.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), v, strings.Join(args, " "), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func runAsk(ctx context.Context, v *viper.Viper, text string, stdout, stderr io.Writer) (err error) {
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
	a.checkBoot(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	updates, err := a.bus.Subscribe(ctx)
	if err != nil {
		return err
	}

	turnID, err := a.ctrl.Submit(ctx, text)
	if err != nil {
		return err
	}
	turn, err := waitSettled(ctx, a.ctrl, turnID, updates)
	if err != nil {
		return err
	}
	if _, err := a.saveFinal(); err != nil {
		return err
	}
	printTurn(stdout, turn, a.client.AssetURL)
	return nil
}

// waitSettled blocks until the turn leaves awaiting_reconciliation and
// returns its final state.
func waitSettled(ctx context.Context, conv omni.Conversation, turnID string, updates <-chan omni.Update) (*omni.Turn, error) {
	ticker := time.NewTicker(settleCheck)
	defer ticker.Stop()
	for {
		snap := conv.Snapshot()
		turn, ok := snap.Turn(turnID)
		if !ok {
			return nil, fmt.Errorf("turn %s: %w", turnID, omni.ErrAborted)
		}
		if turn.Settled() {
			return turn, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-updates:
		case <-ticker.C:
		}
	}
}

// printTurn writes the turn text and one section per visible block, in the
// order the chat view shows them.
func printTurn(w io.Writer, turn *omni.Turn, resolve func(string) string) {
	var initial, rest, conclusion []omni.Block
	if turn.Blocks != nil {
		for _, b := range turn.Blocks.Blocks() {
			switch b.Kind {
			case omni.BlockWeb:
			case omni.BlockMetaInitial:
				initial = append(initial, b)
			case omni.BlockMetaConclusion:
				conclusion = append(conclusion, b)
			default:
				rest = append(rest, b)
			}
		}
	}

	var sections []string
	for _, b := range initial {
		sections = append(sections, formatBlock(b, turn.Settled(), resolve))
	}
	if t := clean(turn.Text); t != "" {
		sections = append(sections, t)
	}
	for _, b := range append(rest, conclusion...) {
		sections = append(sections, formatBlock(b, turn.Settled(), resolve))
	}
	fmt.Fprintln(w, strings.Join(sections, "\n\n"))
}

func formatBlock(b omni.Block, settled bool, resolve func(string) string) string {
	title := b.Title
	if title == "" {
		title = b.Kind.Label()
	}
	lines := []string{"[" + title + "]"}
	switch p := b.Payload; {
	case b.Pending() && settled:
		lines = append(lines, "unavailable: no result")
	case b.Pending():
		lines = append(lines, "pending: no result yet")
	case p != nil && !p.OK:
		reason := p.Error
		if reason == "" {
			reason = "failed"
		}
		lines = append(lines, "error: "+reason)
	case p != nil:
		switch {
		case b.Kind == omni.BlockDoc:
		case clean(p.Data.Text) != "":
			lines = append(lines, clean(p.Data.Text))
		case clean(b.Text) != "":
			lines = append(lines, clean(b.Text))
		}
		if p.Data.URL != "" {
			link := resolve(p.Data.URL)
			if p.Data.Filename != "" {
				link = p.Data.Filename + ": " + link
			}
			lines = append(lines, link)
		}
		for _, c := range p.Citations {
			lines = append(lines, "- "+citation(c, resolve))
		}
	default:
		if t := clean(b.Text); t != "" {
			lines = append(lines, t)
		}
	}
	return strings.Join(lines, "\n")
}

// clean strips escape sequences from backend text for plain output.
func clean(s string) string {
	return strings.TrimSpace(goldmark.Sanitize(s))
}

func citation(c omni.Citation, resolve func(string) string) string {
	switch {
	case c.URL == "":
		return c.Title
	case c.Title == "":
		return resolve(c.URL)
	default:
		return c.Title + " (" + resolve(c.URL) + ")"
	}
}
