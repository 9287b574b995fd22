package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

const version = "0.1.0"

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:    "engram",
		Usage:   "Long-term semantic memory and chat history for conversational agents",
		Version: version,
		Commands: []*cli.Command{
			rememberCommand(),
			recallCommand(),
			chatCommand(),
			historyCommand(),
			clearCommand(),
			rebuildCommand(),
			backupCommand(),
			restoreCommand(),
			exportCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
