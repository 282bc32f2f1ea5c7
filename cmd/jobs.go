package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/urfave/cli/v3"

	"github.com/calyptra/tunesync/internal/jobs"
	"github.com/calyptra/tunesync/internal/shared"
)

func jobsCommand(r *Runner) *cli.Command {
	serverFlag := &cli.StringFlag{
		Name:  "server",
		Usage: "Base URL of a running server",
	}

	return &cli.Command{
		Name:  "jobs",
		Usage: "Manage sync jobs on a running server",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Submit a playlist sync job",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "url"},
				},
				Flags: []cli.Flag{
					serverFlag,
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Audio format (mp3, flac, ogg, opus)",
					},
					&cli.IntFlag{
						Name:  "max-items",
						Usage: "Cap the number of tracks to download",
					},
				},
				Action: r.JobsAdd,
			},
			{
				Name:   "list",
				Usage:  "List all jobs",
				Flags:  []cli.Flag{serverFlag},
				Action: r.JobsList,
			},
			{
				Name:  "get",
				Usage: "Show one job",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  []cli.Flag{serverFlag},
				Action: r.JobsGet,
			},
			{
				Name:  "cancel",
				Usage: "Cancel a pending or running job",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  []cli.Flag{serverFlag},
				Action: r.JobsCancel,
			},
			{
				Name:   "clear",
				Usage:  "Remove all finished jobs",
				Flags:  []cli.Flag{serverFlag},
				Action: r.JobsClear,
			},
		},
	}
}

// apiRequest issues a request against the running server and decodes the
// JSON response into out when it is non-nil.
func (r *Runner) apiRequest(ctx context.Context, cmd *cli.Command, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.serverURL(cmd)+path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: is the server running? %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%w: %s", shared.ErrAPIRequest, apiErr.Error)
		}
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// JobsAdd submits a sync job to the running server.
func (r *Runner) JobsAdd(ctx context.Context, cmd *cli.Command) error {
	url := cmd.StringArg("url")
	if url == "" {
		return fmt.Errorf("%w: playlist url", shared.ErrMissingArgument)
	}

	payload := map[string]any{
		"url":       url,
		"format":    cmd.String("format"),
		"max_items": cmd.Int("max-items"),
	}

	var job jobs.Job
	if err := r.apiRequest(ctx, cmd, http.MethodPost, "/api/jobs", payload, &job); err != nil {
		return err
	}

	r.writePlain("Job %s queued (%s)\n", job.ID, job.Status)
	return nil
}

// JobsList prints every job on the server.
func (r *Runner) JobsList(ctx context.Context, cmd *cli.Command) error {
	var resp struct {
		Jobs []*jobs.Job `json:"jobs"`
	}
	if err := r.apiRequest(ctx, cmd, http.MethodGet, "/api/jobs", nil, &resp); err != nil {
		return err
	}

	if len(resp.Jobs) == 0 {
		r.writePlain("No jobs\n")
		return nil
	}

	for _, job := range resp.Jobs {
		title := job.URL
		if job.ContentInfo != nil && job.ContentInfo.Title != "" {
			title = job.ContentInfo.Title
		}
		r.writePlain("%-36s  %-13s %5.1f%%  %s\n", job.ID, job.Status, job.Progress, title)
	}
	return nil
}

// JobsGet prints one job as JSON.
func (r *Runner) JobsGet(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: job id", shared.ErrMissingArgument)
	}

	var job jobs.Job
	if err := r.apiRequest(ctx, cmd, http.MethodGet, "/api/jobs/"+id, nil, &job); err != nil {
		return err
	}
	return r.writeJSON(job, true)
}

// JobsCancel requests cancellation of a job.
func (r *Runner) JobsCancel(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: job id", shared.ErrMissingArgument)
	}

	var job jobs.Job
	if err := r.apiRequest(ctx, cmd, http.MethodPost, "/api/jobs/"+id+"/cancel", nil, &job); err != nil {
		return err
	}

	r.writePlain("Job %s cancelling (%s)\n", job.ID, job.Status)
	return nil
}

// JobsClear removes finished jobs.
func (r *Runner) JobsClear(ctx context.Context, cmd *cli.Command) error {
	var resp struct {
		Cleared int `json:"cleared"`
	}
	if err := r.apiRequest(ctx, cmd, http.MethodPost, "/api/jobs/clear", nil, &resp); err != nil {
		return err
	}

	r.writePlain("Cleared %d finished jobs\n", resp.Cleared)
	return nil
}
