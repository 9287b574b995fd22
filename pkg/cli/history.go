package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/engram/pkg/model"
	"github.com/urfave/cli/v3"
)

func historyCommand() *cli.Command {
	var (
		cfg    config
		userID string
		limit  int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user-id",
			Aliases:     []string{"u"},
			Usage:       "Session identifier",
			Sources:     cli.EnvVars("ENGRAM_USER_ID"),
			Destination: &userID,
			Required:    true,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Return at most the earliest N turns",
			Sources:     cli.EnvVars("ENGRAM_HISTORY_LIMIT"),
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "history",
		Usage: "Show a session transcript in chronological order",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := cfg.load(); err != nil {
				return err
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			turns, err := cfg.newHistoryStore(repo).LoadHistory(ctx, model.UserID(userID), int(limit))
			if err != nil {
				return err
			}

			if len(turns) == 0 {
				fmt.Fprintf(c.Root().Writer, "No messages for session %s\n", userID)
				return nil
			}

			for _, turn := range turns {
				fmt.Fprintf(c.Root().Writer, "%s\t[%s]\t%s\n",
					turn.Timestamp.Format("2006-01-02 15:04:05"),
					turn.Role,
					turn.Text,
				)
			}
			return nil
		},
	}
}

func clearCommand() *cli.Command {
	var (
		cfg    config
		userID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user-id",
			Aliases:     []string{"u"},
			Usage:       "Session identifier to clear",
			Sources:     cli.EnvVars("ENGRAM_USER_ID"),
			Destination: &userID,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "clear",
		Usage: "Delete all messages of a session (the session itself remains)",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := cfg.load(); err != nil {
				return err
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := cfg.newHistoryStore(repo).ClearHistory(ctx, model.UserID(userID)); err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Cleared history for session %s\n", userID)
			return nil
		},
	}
}
