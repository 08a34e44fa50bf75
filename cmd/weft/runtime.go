package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/recera/weft/cmd/weft/internal/config"
	"github.com/recera/weft/pkg/fiber"
)

// newLogger builds the CLI logger; verbose additionally injects it as the
// runtime's debug log.
func newLogger(verbose bool) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	if verbose {
		sugar := logger.Sugar()
		fiber.SetDebugLog(func(args ...interface{}) {
			sugar.Debug(args...)
		})
	}
	return logger, nil
}

// newGroup builds a scheduler group from the scheduler config section.
func newGroup(cfg config.SchedulerConfig) (*fiber.Group, error) {
	var opts []fiber.Option
	if cfg.StackSize > 0 {
		opts = append(opts, fiber.WithDefaultStackSize(cfg.StackSize))
	}
	n := cfg.Workers
	switch cfg.Algorithm {
	case "", "work-stealing":
		return fiber.NewWorkStealingGroup(n, 1, opts...), nil
	case "shared":
		return fiber.NewSharedQueueGroup(n, opts...), nil
	case "round-robin":
		return fiber.NewGroup(n, func(int) fiber.Algorithm { return fiber.NewRoundRobin() }, opts...), nil
	case "priority":
		return fiber.NewGroup(n, func(int) fiber.Algorithm { return fiber.NewPriorityQueue() }, opts...), nil
	default:
		return nil, fmt.Errorf("unknown algorithm %q", cfg.Algorithm)
	}
}
