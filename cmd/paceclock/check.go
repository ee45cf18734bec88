package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/paceclock/internal/cache"
	"github.com/goodtune/paceclock/internal/config"
	"github.com/goodtune/paceclock/internal/engine"
	"github.com/goodtune/paceclock/web"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	checkAt string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check predictions and cache health interactively",
	Long:  `Check what the pace clock would predict or serve without starting the server.`,
}

var checkGhostCmd = &cobra.Command{
	Use:   "ghost",
	Short: "Check the ghost hand prediction",
	Long:  `Check which pace hand next completes a revolution at a given wall-clock time.`,
	Example: `  paceclock check ghost
  paceclock -c config.yaml check ghost --at 14:30:35`,
	RunE: runCheckGhost,
}

var checkCacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Check the asset cache manifest",
	Long:  `Dry-run the shell install, reporting whether each manifest asset is fetchable.`,
	Example: `  paceclock check cache
  paceclock -c config.yaml check cache`,
	RunE: runCheckCache,
}

func init() {
	checkGhostCmd.Flags().StringVar(&checkAt, "at", "", "Wall-clock time to predict at (HH:MM:SS) - defaults to now")

	checkCmd.AddCommand(checkGhostCmd)
	checkCmd.AddCommand(checkCacheCmd)
	rootCmd.AddCommand(checkCmd)
}

func runCheckGhost(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Parse time (if provided)
	at := time.Now()
	if checkAt != "" {
		clock, err := time.Parse("15:04:05", checkAt)
		if err != nil {
			return fmt.Errorf("invalid time specification %q, want HH:MM:SS", checkAt)
		}
		at = time.Date(at.Year(), at.Month(), at.Day(),
			clock.Hour(), clock.Minute(), clock.Second(), 0, at.Location())
	}

	hands := make(engine.Hands, 0, len(cfg.Session.Hands))
	for _, hand := range cfg.Session.Hands {
		hands = append(hands, engine.Hand{Color: hand.Color, Offset: hand.Offset})
	}

	ghost := hands.Predict(at)

	printGhostResult(at, hands, ghost)

	return nil
}

func runCheckCache(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Quiet logger for check mode
	logger := zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	origin := cfg.Cache.OriginURL
	var originClient *http.Client
	if origin == "" {
		origin = web.DefaultOrigin
		originClient = web.NewClient()
	}

	assetCache, err := cache.New(cache.Config{
		Version:      cfg.Cache.Version,
		Origin:       origin,
		Manifest:     cfg.Cache.Manifest,
		ShellPath:    cfg.Cache.ShellPath,
		LRUSize:      cfg.Cache.LRUSize,
		FetchTimeout: parseDuration(cfg.Cache.FetchTimeout, 10*time.Second),
	}, store.Assets(), originClient, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize asset cache: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	results := assetCache.Check(ctx)

	failures := printCacheResult(cfg.Cache.Version, origin, results)
	if failures > 0 {
		return fmt.Errorf("%d of %d manifest assets unavailable", failures, len(results))
	}

	return nil
}

// printGhostResult prints the ghost prediction with colors
func printGhostResult(at time.Time, hands engine.Hands, ghost engine.Ghost) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Println("GHOST HAND PREDICTION")
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	fmt.Printf("Time:       %s\n", at.Format("15:04:05"))
	fmt.Printf("Hands:      %d configured\n", len(hands))
	fmt.Println()

	cyan.Print("Next hand:  ")
	green.Println(ghost.Color)
	fmt.Printf("            → currently at %.1fs on the face\n", ghost.Seconds)
	fmt.Printf("            → completes its revolution in %.1fs\n", ghost.Remaining)
	fmt.Println()
}

// printCacheResult prints per-asset check results, returning the failure count
func printCacheResult(version, origin string, results []cache.CheckResult) int {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Println("ASSET CACHE CHECK")
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	fmt.Printf("Generation: %s\n", version)
	fmt.Printf("Origin:     %s\n", origin)
	fmt.Println()

	failures := 0
	for _, result := range results {
		if result.Err != nil {
			failures++
			red.Printf("  ✗ %-28s %v\n", result.Path, result.Err)
		} else {
			green.Printf("  ✓ %-28s %d bytes\n", result.Path, result.Size)
		}
	}

	fmt.Println()
	if failures == 0 {
		green.Printf("All %d manifest assets available. Install would succeed.\n", len(results))
	} else {
		red.Printf("%d of %d assets unavailable. Install would be abandoned.\n", failures, len(results))
	}
	fmt.Println()

	return failures
}
