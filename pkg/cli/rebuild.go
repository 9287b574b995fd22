package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func rebuildCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "rebuild",
		Usage: "Re-embed the whole ledger and rewrite the vector index blob",
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

			n, err := memories.Rebuild(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Rebuilt index with %d vectors\n", n)
			return nil
		},
	}
}
