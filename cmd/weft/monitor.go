package main

import (
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/recera/weft/cmd/weft/internal/config"
	"github.com/recera/weft/cmd/weft/internal/ui"
	"github.com/recera/weft/pkg/fiber"
)

func newMonitorCommand() *cobra.Command {
	var (
		workers   int
		algorithm string
		churn     int
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Live TUI over a churning scheduler group",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := newGroup(config.SchedulerConfig{Workers: workers, Algorithm: algorithm})
			if err != nil {
				return err
			}

			// Churn workload: keep a rolling population of short-lived
			// fibers busy with yields and sleeps so the counters move.
			var stopped atomic.Bool
			go func() {
				for !stopped.Load() {
					for i := 0; i < churn; i++ {
						_, err := g.Spawn(func(f *fiber.Fiber) error {
							for j := 0; j < 50; j++ {
								f.Yield()
							}
							return f.SleepFor(10 * time.Millisecond)
						})
						if err != nil {
							return
						}
					}
					time.Sleep(20 * time.Millisecond)
				}
			}()

			p := tea.NewProgram(ui.NewModel(g.MemberStats))
			_, runErr := p.Run()
			stopped.Store(true)
			g.Shutdown()
			return runErr
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 4, "scheduler instances")
	cmd.Flags().StringVar(&algorithm, "algorithm", "work-stealing", "scheduling algorithm")
	cmd.Flags().IntVar(&churn, "churn", 8, "fibers spawned per churn round")
	return cmd
}
