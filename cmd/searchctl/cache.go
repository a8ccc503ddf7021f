package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the result cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show result cache statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var stats cache.Stats
		if err := newClient().do("GET", "/api/v1/cache/stats", nil, &stats); err != nil {
			return err
		}
		fmt.Printf("Entries:  %d\n", stats.Size)
		fmt.Printf("Hits:     %d\n", stats.Hits)
		fmt.Printf("Misses:   %d\n", stats.Misses)
		fmt.Printf("Hit rate: %.1f%%\n", stats.HitRate*100)
		for _, k := range stats.Keys {
			fmt.Printf("  %s\n", k)
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every cached result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().do("POST", "/api/v1/cache/clear", nil, nil); err != nil {
			return err
		}
		fmt.Println("cache cleared")
		return nil
	},
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <key>",
	Short: "Drop one cached result by key (term|filter|limit)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/api/v1/cache/invalidate?key=" + url.QueryEscape(args[0])
		if err := newClient().do("POST", path, nil, nil); err != nil {
			return err
		}
		fmt.Printf("invalidated %s\n", args[0])
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cacheInvalidateCmd)
	rootCmd.AddCommand(cacheCmd)
}
