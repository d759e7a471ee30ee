package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
	}

	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	cacheCmd.AddCommand(newCacheInfoCommand(ctx))

	return cacheCmd
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached search and details response",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx := commandCtx(cmd)
			a, err := ctx.ensureApp(runCtx)
			if err != nil {
				return err
			}
			removed, err := a.search.ClearCache(runCtx)
			if err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cache entries from %s\n", removed, a.cache.BackendName())
			return nil
		},
	}
}

func newCacheInfoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the configured cache backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(commandCtx(cmd))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backend: %s\n", a.cache.BackendName())
			fmt.Fprintf(out, "TTL:     %s\n", a.cfg.CacheTTL())
			fmt.Fprintf(out, "Breaker: %s\n", a.cache.BreakerState())
			switch a.cfg.Cache.Backend {
			case "sqlite":
				fmt.Fprintf(out, "Path:    %s\n", a.cfg.Cache.SQLitePath)
			case "redis":
				fmt.Fprintf(out, "Prefix:  %s\n", a.cfg.Cache.KeyPrefix)
			}
			return nil
		},
	}
}
