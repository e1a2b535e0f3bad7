package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lcx/oldentide-client/log"
	"github.com/lcx/oldentide-client/net"
)

// programRef reaches a tea.Program that is created after the client needing it.
// Messages sent before the program is set are dropped.
type programRef struct {
	p atomic.Pointer[tea.Program]
}

func (r *programRef) set(p *tea.Program) { r.p.Store(p) }

func (r *programRef) Send(msg tea.Msg) {
	if p := r.p.Load(); p != nil {
		p.Send(msg)
	}
}

// ShowServerText implements net.Display.
func (r *programRef) ShowServerText(text string) {
	r.Send(serverTextMsg(text))
}

func runInteractive(cmd *cobra.Command, _ []string) error {
	cfg, cm, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cm.Close()

	// the terminal belongs to the UI
	if err := logToFile(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	ref := &programRef{}
	client, err := net.NewClient(ctx, cfg, net.WithDisplay(ref))
	if err != nil {
		return err
	}
	defer client.Close()
	cm.AddChangeListener(client)

	server := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort)
	p := tea.NewProgram(newModel(ctx, client, ref.Send, server), tea.WithContext(ctx), tea.WithAltScreen())
	ref.set(p)

	g.Go(func() error {
		defer cancel()
		_, err := p.Run()
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(ctx, cfg.MetricsAddr)
		})
	}
	return g.Wait()
}

func logToFile() error {
	path := "oldentide-client.log"
	if cfg := log.Default().GetCurrentConfig(); cfg != nil && cfg.LogPath != "" {
		path = cfg.LogPath
	}
	fa, err := log.NewFileAppender(path)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	log.Default().SetAppenders(fa)
	return nil
}
