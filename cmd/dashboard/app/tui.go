package app

import (
	"context"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"carbon_dashboard/internal/logger"
	"carbon_dashboard/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Run the terminal dashboard",
	RunE:  runTUI,
}

func init() {
	tuiCmd.Flags().String("log-file", "", "Write logs to this file instead of discarding them")
}

func runTUI(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := newRuntime(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	logPath, _ := cmd.Flags().GetString("log-file")
	var out io.Writer = io.Discard
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	logger.Redirect(out)

	p := tea.NewProgram(tui.NewModel(ctx, rt.catalog, rt.news), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}
