package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/calyptra/tunesync/internal/ui"
)

func monitorCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "monitor",
		Usage: "Watch jobs on a running server in an interactive terminal view",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server",
				Usage: "Base URL of a running server",
			},
		},
		Action: r.Monitor,
	}
}

// Monitor launches the TUI against a running server's event stream.
func (r *Runner) Monitor(ctx context.Context, cmd *cli.Command) error {
	client := ui.NewStreamClient(r.serverURL(cmd), r.httpClient)

	model := ui.NewModel(ctx, client)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("monitor error: %w", err)
	}
	return nil
}
