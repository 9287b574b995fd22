package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/m-mizutani/engram/pkg/usecase/memory"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func snapshotFlags(cfg *config, bucket, prefix *string) []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "bucket",
			Aliases:     []string{"b"},
			Usage:       "Cloud Storage bucket for snapshots",
			Sources:     cli.EnvVars("ENGRAM_SNAPSHOT_BUCKET"),
			Destination: bucket,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "prefix",
			Usage:       "Object key prefix within the bucket",
			Value:       "engram",
			Sources:     cli.EnvVars("ENGRAM_SNAPSHOT_PREFIX"),
			Destination: prefix,
		},
	}
	return append(flags, globalFlags(cfg)...)
}

func backupCommand() *cli.Command {
	var (
		cfg    config
		bucket string
		prefix string
	)

	return &cli.Command{
		Name:  "backup",
		Usage: "Upload the ledger database and index blob to Cloud Storage",
		Flags: snapshotFlags(&cfg, &bucket, &prefix),
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := cfg.load(); err != nil {
				return err
			}

			storage, err := cfg.newStorage(ctx, bucket)
			if err != nil {
				return err
			}

			if err := memory.Backup(ctx, storage, prefix, cfg.dbPath(), cfg.indexPath()); err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Backup completed to gs://%s/%s\n", bucket, prefix)
			return nil
		},
	}
}

func restoreCommand() *cli.Command {
	var (
		cfg    config
		bucket string
		prefix string
	)

	return &cli.Command{
		Name:  "restore",
		Usage: "Download the ledger database and index blob from Cloud Storage",
		Flags: snapshotFlags(&cfg, &bucket, &prefix),
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := cfg.load(); err != nil {
				return err
			}

			storage, err := cfg.newStorage(ctx, bucket)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(cfg.dataDir, 0o755); err != nil {
				return goerr.Wrap(err, "failed to create data directory", goerr.V("dir", cfg.dataDir))
			}

			if err := memory.Restore(ctx, storage, prefix, cfg.dbPath(), cfg.indexPath()); err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Restore completed from gs://%s/%s\n", bucket, prefix)
			return nil
		},
	}
}
