package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"carbon_dashboard/internal/logger"
)

var fetchCmd = &cobra.Command{
	Use:       "fetch news|projects",
	Short:     "Run one cycle and print the result as JSON",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"news", "projects"},
	RunE:      runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := newRuntime(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	// keep stdout for the JSON document
	logger.Redirect(os.Stderr)

	var (
		snapshot any
		cycleErr error
	)
	switch args[0] {
	case "news":
		cycleErr = rt.news.Mount(ctx)
		snapshot = rt.news.Snapshot()
	case "projects":
		cycleErr = rt.catalog.Load(ctx)
		snapshot = rt.catalog.Snapshot()
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		return err
	}
	if cycleErr != nil {
		return fmt.Errorf("%s: %w", args[0], cycleErr)
	}
	return nil
}
