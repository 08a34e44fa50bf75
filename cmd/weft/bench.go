package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/recera/weft/cmd/weft/internal/config"
	"github.com/recera/weft/pkg/fiber"
)

func newBenchCommand() *cobra.Command {
	var (
		fibers  int
		yields  int
		workers int
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure spawn/yield throughput per scheduling algorithm",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(verbose)
			if err != nil {
				return err
			}
			defer logger.Sync()

			for _, algo := range []string{"round-robin", "priority", "shared", "work-stealing"} {
				g, err := newGroup(config.SchedulerConfig{Workers: workers, Algorithm: algo})
				if err != nil {
					return err
				}
				start := time.Now()
				for i := 0; i < fibers; i++ {
					if _, err := g.Spawn(func(f *fiber.Fiber) error {
						for j := 0; j < yields; j++ {
							f.Yield()
						}
						return nil
					}); err != nil {
						return err
					}
				}
				g.Drain()
				elapsed := time.Since(start)
				g.Shutdown()

				switches := uint64(fibers) * uint64(yields+1)
				logger.Info("bench result",
					zap.String("algorithm", algo),
					zap.Int("fibers", fibers),
					zap.Int("yields", yields),
					zap.Duration("elapsed", elapsed),
					zap.Float64("switches_per_sec", float64(switches)/elapsed.Seconds()),
				)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&fibers, "fibers", 1000, "fibers to spawn per run")
	cmd.Flags().IntVar(&yields, "yields", 100, "yields per fiber")
	cmd.Flags().IntVar(&workers, "workers", 4, "scheduler instances")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable runtime debug logging")
	return cmd
}
