package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func recallCommand() *cli.Command {
	var (
		cfg   config
		query string
		limit int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "query",
			Aliases:     []string{"q"},
			Usage:       "Natural language query to search memories",
			Sources:     cli.EnvVars("ENGRAM_QUERY"),
			Destination: &query,
			Required:    true,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of memories to return",
			Value:       5,
			Sources:     cli.EnvVars("ENGRAM_RECALL_LIMIT"),
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "recall",
		Usage: "Retrieve the facts most relevant to a query",
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

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			memories, err := cfg.newMemoryStore(ctx, repo, gemini)
			if err != nil {
				return err
			}
			defer memories.Close()

			results, err := memories.Search(ctx, query, int(limit))
			if err != nil {
				return err
			}

			if len(results) == 0 {
				fmt.Fprintf(c.Root().Writer, "No relevant memories found\n")
				return nil
			}

			for i, text := range results {
				fmt.Fprintf(c.Root().Writer, "%d. %s\n", i+1, text)
			}
			return nil
		},
	}
}
