package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func rememberCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:      "remember",
		Usage:     "Store a fact in long-term memory",
		ArgsUsage: "<text>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := cfg.load(); err != nil {
				return err
			}

			text := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(text) == "" {
				return goerr.New("no text provided")
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

			if err := memories.Add(ctx, text); err != nil {
				return goerr.Wrap(err, "failed to store fact")
			}

			fmt.Fprintf(c.Root().Writer, "Remembered: %s\n", text)
			return nil
		},
	}
}
