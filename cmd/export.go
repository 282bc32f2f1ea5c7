package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/calyptra/tunesync/internal/catalog"
	"github.com/calyptra/tunesync/internal/formatter"
	"github.com/calyptra/tunesync/internal/shared"
)

func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export a playlist's track listing without downloading audio",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "url"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Export format: csv, markdown, text, or json",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path, prints to stdout when omitted (csv writes {base}_tracks.csv)",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON output",
				Value: true,
			},
		},
		Action: r.Export,
	}
}

// Export fetches a playlist listing and renders it in the chosen format.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	url := cmd.StringArg("url")
	if url == "" {
		return fmt.Errorf("%w: playlist url", shared.ErrMissingArgument)
	}

	playlistID, err := catalog.PlaylistIDFromURL(url)
	if err != nil {
		return err
	}

	export, err := r.catalog.ExportPlaylist(ctx, playlistID)
	if err != nil {
		return fmt.Errorf("failed to export playlist: %w", err)
	}

	output := cmd.String("output")

	switch cmd.String("format") {
	case "csv":
		result, err := formatter.WriteCSVExport(export, output)
		if err != nil {
			return err
		}
		r.writePlain("Wrote %s and %s\n", result.TracksFile, result.MetadataFile)
		return nil
	case "markdown", "md":
		data, err := formatter.ExportToMarkdown(export)
		if err != nil {
			return err
		}
		return r.writeExport(data, output)
	case "text", "txt":
		data, err := formatter.ExportToText(export)
		if err != nil {
			return err
		}
		return r.writeExport(data, output)
	case "json":
		data, err := shared.MarshalJSON(export, cmd.Bool("pretty"))
		if err != nil {
			return fmt.Errorf("failed to marshal export: %w", err)
		}
		return r.writeExport(append(data, '\n'), output)
	default:
		return fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidFlag, cmd.String("format"))
	}
}

func (r *Runner) writeExport(data []byte, path string) error {
	if path == "" {
		_, err := r.output.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return r.writePlain("Wrote %s\n", path)
}
