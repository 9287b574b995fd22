package cli

import (
	"context"

	"github.com/m-mizutani/engram/pkg/service/mcp"
	"github.com/urfave/cli/v3"
)

func mcpCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the memory and history stores as MCP tools over stdio",
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

			server := mcp.New(memories, cfg.newHistoryStore(repo), version)
			return server.Run(ctx)
		},
	}
}
