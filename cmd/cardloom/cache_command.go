package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"cardloom/internal/mediacache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Media cache utilities",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCachePruneCommand(ctx))

	return cacheCmd
}

func (c *commandContext) withManifest(fn func(*mediacache.Manifest) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	manifest, err := mediacache.OpenManifest(cfg.Paths.CacheDir)
	if err != nil {
		return err
	}
	defer func() { _ = manifest.Close() }()
	return fn(manifest)
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cached media counts and sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManifest(func(manifest *mediacache.Manifest) error {
				stats, err := manifest.Stats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Kind", "Files", "Size"},
					[][]string{
						{"audio", strconv.Itoa(stats.Audio.Count), formatBytes(stats.Audio.TotalBytes)},
						{"image", strconv.Itoa(stats.Image.Count), formatBytes(stats.Image.TotalBytes)},
					},
					[]columnAlignment{alignLeft, alignRight, alignRight},
				))
				return nil
			})
		},
	}
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached media entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManifest(func(manifest *mediacache.Manifest) error {
				entries, err := manifest.List(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					rows = append(rows, []string{
						entry.Kind,
						entry.FileName,
						formatBytes(entry.SizeBytes),
						entry.CreatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Kind", "File", "Size", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func newCachePruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete cached media older than a cutoff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			manifest, err := mediacache.OpenManifest(cfg.Paths.CacheDir)
			if err != nil {
				return err
			}
			defer func() { _ = manifest.Close() }()

			cache := mediacache.New(cfg.AudioDir(), cfg.ImageDir(), ctx.ensureLogger(),
				mediacache.WithManifest(manifest))
			removed, err := cache.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached file(s)\n", removed)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Minimum age of entries to delete")
	return cmd
}
