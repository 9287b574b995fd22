package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/engram/pkg/usecase/export"
	"github.com/urfave/cli/v3"
)

func exportCommand() *cli.Command {
	var (
		cfg     config
		dataset string
		userID  string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "dataset",
			Usage:       "BigQuery dataset ID",
			Sources:     cli.EnvVars("ENGRAM_BQ_DATASET"),
			Destination: &dataset,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "user-id",
			Aliases:     []string{"u"},
			Usage:       "Also export this session's chat transcript",
			Sources:     cli.EnvVars("ENGRAM_USER_ID"),
			Destination: &userID,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "export",
		Usage: "Export the ledgers to BigQuery",
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

			bq, err := cfg.newBigQuery(ctx)
			if err != nil {
				return err
			}

			uc := export.New(repo, bq)

			n, err := uc.Memories(ctx, dataset, "memories")
			if err != nil {
				return err
			}
			fmt.Fprintf(c.Root().Writer, "Exported %d memory records\n", n)

			if userID != "" {
				n, err := uc.Turns(ctx, model.UserID(userID), dataset, "chat_turns")
				if err != nil {
					return err
				}
				fmt.Fprintf(c.Root().Writer, "Exported %d chat turns\n", n)
			}

			return nil
		},
	}
}
