package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/recera/weft/pkg/channel"
	"github.com/recera/weft/pkg/fiber"
	"github.com/recera/weft/pkg/fsync"
	"github.com/recera/weft/pkg/future"
)

func newDemoCommand() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run runtime demos",
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable runtime debug logging")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "pingpong",
			Short: "Two fibers exchanging messages over a channel pair",
			RunE: func(cmd *cobra.Command, args []string) error {
				logger, err := newLogger(verbose)
				if err != nil {
					return err
				}
				defer logger.Sync()
				return demoPingPong(logger)
			},
		},
		&cobra.Command{
			Use:   "fibtree",
			Short: "Fibonacci join tree over futures on a work-stealing group",
			RunE: func(cmd *cobra.Command, args []string) error {
				logger, err := newLogger(verbose)
				if err != nil {
					return err
				}
				defer logger.Sync()
				return demoFibTree(logger)
			},
		},
		&cobra.Command{
			Use:   "prodcons",
			Short: "Producer and consumer over a bounded channel",
			RunE: func(cmd *cobra.Command, args []string) error {
				logger, err := newLogger(verbose)
				if err != nil {
					return err
				}
				defer logger.Sync()
				return demoProdCons(logger)
			},
		},
		&cobra.Command{
			Use:   "interrupt",
			Short: "Interruption of a fiber blocked on a condition variable",
			RunE: func(cmd *cobra.Command, args []string) error {
				logger, err := newLogger(verbose)
				if err != nil {
					return err
				}
				defer logger.Sync()
				return demoInterrupt(logger)
			},
		},
	)
	return cmd
}

func demoPingPong(logger *zap.Logger) error {
	const rounds = 1000
	s := fiber.NewScheduler()
	ab := channel.NewUnbounded[int]()
	ba := channel.NewUnbounded[int]()

	relay := func(in, out *channel.Unbounded[int], count *int) fiber.Task {
		return func(f *fiber.Fiber) error {
			for i := 0; i < rounds; i++ {
				v, st, err := in.Pop(f)
				if err != nil {
					return err
				}
				if st != channel.OK {
					return fmt.Errorf("unexpected status %s", st)
				}
				*count++
				out.Push(f, v+1)
			}
			return nil
		}
	}

	var seenA, seenB int
	fa, err := s.Spawn(relay(ab, ba, &seenA))
	if err != nil {
		return err
	}
	fb, err := s.Spawn(relay(ba, ab, &seenB))
	if err != nil {
		return err
	}
	ab.Push(nil, 1)

	fa.Wait()
	fb.Wait()
	final, _ := ab.TryPop(nil)
	logger.Info("ping-pong finished",
		zap.Int("a_observed", seenA),
		zap.Int("b_observed", seenB),
		zap.Int("final_value", final),
	)
	s.Shutdown()
	return nil
}

func demoFibTree(logger *zap.Logger) error {
	const n = 10
	g := fiber.NewWorkStealingGroup(4, 1)

	var fib func(n int) func(f *fiber.Fiber) (int, error)
	fib = func(n int) func(f *fiber.Fiber) (int, error) {
		return func(f *fiber.Fiber) (int, error) {
			if n < 2 {
				return n, nil
			}
			left, err := future.Async(g, fib(n-1))
			if err != nil {
				return 0, err
			}
			right, err := future.Async(g, fib(n-2))
			if err != nil {
				return 0, err
			}
			a, err := left.Get(f)
			if err != nil {
				return 0, err
			}
			b, err := right.Get(f)
			if err != nil {
				return 0, err
			}
			return a + b, nil
		}
	}

	fu, err := future.Async(g, fib(n))
	if err != nil {
		return err
	}
	root, err := g.Spawn(func(f *fiber.Fiber) error {
		v, err := fu.Get(f)
		if err != nil {
			return err
		}
		logger.Info("fib computed", zap.Int("n", n), zap.Int("value", v))
		return nil
	})
	if err != nil {
		return err
	}
	root.Wait()
	stats := g.Stats()
	logger.Info("group stats",
		zap.Uint64("spawned", stats.Spawned),
		zap.Uint64("steals", stats.Steals),
	)
	g.Shutdown()
	return nil
}

func demoProdCons(logger *zap.Logger) error {
	const items = 100
	s := fiber.NewScheduler()
	ch, err := channel.NewBounded[int](4, 2)
	if err != nil {
		return err
	}

	producer, err := s.Spawn(func(f *fiber.Fiber) error {
		for i := 0; i < items; i++ {
			if st, err := ch.Push(f, i); err != nil || st != channel.OK {
				return fmt.Errorf("push %d: status %v err %v", i, st, err)
			}
		}
		ch.Close()
		return nil
	})
	if err != nil {
		return err
	}

	var got []int
	consumer, err := s.Spawn(func(f *fiber.Fiber) error {
		for {
			v, st, err := ch.Pop(f)
			if err != nil {
				return err
			}
			if st == channel.Closed {
				return nil
			}
			got = append(got, v)
		}
	})
	if err != nil {
		return err
	}

	producer.Wait()
	consumer.Wait()
	ordered := len(got) == items
	for i, v := range got {
		if v != i {
			ordered = false
			break
		}
	}
	logger.Info("producer-consumer finished",
		zap.Int("consumed", len(got)),
		zap.Bool("ordered", ordered),
		zap.Uint64("parks", s.Stats().Parks),
	)
	s.Shutdown()
	return nil
}

func demoInterrupt(logger *zap.Logger) error {
	s := fiber.NewScheduler()
	var mtx fsync.Mutex
	var cond fsync.Cond

	waiter, err := s.Spawn(func(f *fiber.Fiber) error {
		if err := mtx.Lock(f); err != nil {
			return err
		}
		err := cond.Wait(f, &mtx)
		held := mtx.Owner() == f
		logger.Info("wait returned",
			zap.Bool("interrupted", errors.Is(err, fiber.ErrInterrupted)),
			zap.Bool("lock_held", held),
		)
		return mtx.Unlock(f)
	})
	if err != nil {
		return err
	}

	_, err = s.Spawn(func(f *fiber.Fiber) error {
		if err := f.SleepFor(100 * time.Millisecond); err != nil {
			return err
		}
		waiter.Interrupt()
		return nil
	})
	if err != nil {
		return err
	}

	waiter.Wait()
	s.Shutdown()
	return nil
}
