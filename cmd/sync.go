package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/calyptra/tunesync/internal/jobs"
	"github.com/calyptra/tunesync/internal/library"
	"github.com/calyptra/tunesync/internal/models"
	"github.com/calyptra/tunesync/internal/shared"
	"github.com/calyptra/tunesync/internal/syncer"
)

func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Download one playlist directly, without a server",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "url",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Audio format (mp3, flac, ogg, opus)",
			},
			&cli.IntFlag{
				Name:  "max-items",
				Usage: "Cap the number of tracks to download",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Library directory, defaults to the configured downloads directory",
			},
		},
		Action: r.SyncRun,
	}
}

// SyncRun downloads one playlist in the foreground with progress printed
// to the terminal.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	url := cmd.StringArg("url")
	if url == "" {
		return fmt.Errorf("%w: playlist url", shared.ErrMissingArgument)
	}

	formatFlag := cmd.String("format")
	if formatFlag == "" {
		formatFlag = r.config.Downloads.Format
	}
	format, err := models.ParseAudioFormat(formatFlag)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}

	dir := cmd.String("output")
	if dir == "" {
		dir = r.config.Downloads.Directory
	}

	r.logger.Info("starting sync", "url", url, "format", format)
	r.writePlain("Syncing playlist...\n")
	r.writePlain("Source: %s\n\n", url)

	writer := library.NewWriter(dir, format, r.httpClient)
	s := syncer.New(r.catalog, writer, r.logger)

	onProgress := func(update jobs.ProgressUpdate) {
		switch update.Step {
		case jobs.StepFetchingInfo:
			r.writePlain("📥 %s\n", update.Message)
		case jobs.StepDownloading:
			r.writePlain("   [%5.1f%%] %s\n", update.Progress, update.Message)
		case jobs.StepImporting:
			r.writePlain("📝 %s\n", update.Message)
		}
	}

	result, err := s.Execute(url, onProgress, jobs.NewCancelToken(), int(cmd.Int("max-items")))
	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Sync Complete!")
	if result.ContentInfo != nil {
		r.writePlain("Playlist: %s (%d tracks)\n", result.ContentInfo.Title, result.ContentInfo.TrackCount)
	}
	if result.Stats != nil {
		r.writePlain("Downloaded: %d  Skipped: %d  Failed: %d\n",
			result.Stats.TracksDownloaded, result.Stats.TracksSkipped, result.Stats.TracksFailed)
		r.writePlain("Bytes written: %d in %.1fs\n", result.Stats.BytesWritten, result.Stats.ElapsedSeconds)
	}
	if !result.Success {
		return fmt.Errorf("sync failed: %s", result.Error)
	}
	if result.Error != "" {
		r.writePlain("\nWarning: %s\n", result.Error)
	}

	return nil
}
