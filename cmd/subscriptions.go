package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/calyptra/tunesync/internal/models"
	"github.com/calyptra/tunesync/internal/repositories"
	"github.com/calyptra/tunesync/internal/shared"
)

func subscriptionsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "subscriptions",
		Aliases: []string{"subs"},
		Usage:   "Manage playlist subscriptions the watcher keeps in sync",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Subscribe to a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "url"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "name",
						Usage: "Display name for the subscription",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Audio format (mp3, flac, ogg, opus)",
					},
					&cli.IntFlag{
						Name:  "max-items",
						Usage: "Cap the number of tracks per sync",
					},
				},
				Action: r.SubscriptionsAdd,
			},
			{
				Name:   "list",
				Usage:  "List subscriptions",
				Action: r.SubscriptionsList,
			},
			{
				Name:  "remove",
				Usage: "Remove a subscription",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.SubscriptionsRemove,
			},
		},
	}
}

// openRepository opens the configured database and returns the subscription
// repository with a close function.
func (r *Runner) openRepository() (*repositories.SubscriptionRepository, func() error, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := ensureMigrated(db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return repositories.NewSubscriptionRepository(db), db.Close, nil
}

func ensureMigrated(db *sql.DB) error {
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// SubscriptionsAdd stores a new subscription.
func (r *Runner) SubscriptionsAdd(ctx context.Context, cmd *cli.Command) error {
	url := cmd.StringArg("url")
	if url == "" {
		return fmt.Errorf("%w: playlist url", shared.ErrMissingArgument)
	}

	format, err := models.ParseAudioFormat(cmd.String("format"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}

	name := cmd.String("name")
	if name == "" {
		name = url
	}

	repo, closeDB, err := r.openRepository()
	if err != nil {
		return err
	}
	defer closeDB()

	sub := models.NewSubscription(0, url, name, format, int(cmd.Int("max-items")))
	if err := repo.Create(sub); err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	r.writePlain("Subscribed to %s (%s)\n", name, sub.ID())
	return nil
}

// SubscriptionsList prints all subscriptions.
func (r *Runner) SubscriptionsList(ctx context.Context, cmd *cli.Command) error {
	repo, closeDB, err := r.openRepository()
	if err != nil {
		return err
	}
	defer closeDB()

	subs, err := repo.List()
	if err != nil {
		return fmt.Errorf("failed to list subscriptions: %w", err)
	}

	if len(subs) == 0 {
		r.writePlain("No subscriptions\n")
		return nil
	}

	for _, sub := range subs {
		lastSync := "never"
		if t := sub.LastSyncedAt(); t != nil {
			lastSync = t.Format("2006-01-02 15:04")
		}
		r.writePlain("%-36s  %-8s last sync: %-16s  %s\n", sub.ID(), sub.AudioFormat(), lastSync, sub.PlaylistName())
	}
	return nil
}

// SubscriptionsRemove soft-deletes a subscription.
func (r *Runner) SubscriptionsRemove(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: subscription id", shared.ErrMissingArgument)
	}

	repo, closeDB, err := r.openRepository()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := repo.Delete(id); err != nil {
		return fmt.Errorf("failed to remove subscription: %w", err)
	}

	r.writePlain("Removed subscription %s\n", id)
	return nil
}
