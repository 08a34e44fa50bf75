package main

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/recera/weft/cmd/weft/internal/config"
	"github.com/recera/weft/pkg/channel"
	"github.com/recera/weft/pkg/fiber"
)

func newServeCommand() *cobra.Command {
	var (
		configPath string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the fiber-powered websocket echo server",
		Long: `serve runs a websocket echo server in which every session is handled by
its own fiber: a plain goroutine reads frames off the socket and feeds them
into an unbounded channel, and a fiber drains the channel and writes the
echoes. weft.yaml is watched and the ping interval applies live.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(verbose)
			if err != nil {
				return err
			}
			defer logger.Sync()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			g, err := newGroup(cfg.Scheduler)
			if err != nil {
				return err
			}
			srv := newEchoServer(g, cfg, logger)

			stop, err := config.Watch(configPath,
				func(next *config.Config) {
					srv.setPingInterval(next.Server.PingInterval.Std())
					logger.Info("config reloaded",
						zap.Duration("pingInterval", next.Server.PingInterval.Std()))
				},
				func(werr error) {
					logger.Warn("config watch", zap.Error(werr))
				},
			)
			if err != nil {
				logger.Warn("config watching disabled", zap.Error(err))
			} else {
				defer stop()
			}

			mux := http.NewServeMux()
			mux.HandleFunc("/ws", srv.handleWebSocket)
			mux.HandleFunc("/stats", srv.handleStats)
			logger.Info("listening", zap.String("addr", cfg.Server.Addr))
			return http.ListenAndServe(cfg.Server.Addr, mux)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "weft.yaml", "path to configuration file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable runtime debug logging")
	return cmd
}

type echoServer struct {
	g        *fiber.Group
	logger   *zap.Logger
	upgrader websocket.Upgrader

	pingInterval atomic.Int64
	maxSessions  int

	mu       sync.Mutex
	sessions int
	nextID   uint64
}

func newEchoServer(g *fiber.Group, cfg *config.Config, logger *zap.Logger) *echoServer {
	s := &echoServer{
		g:      g,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		maxSessions: cfg.Server.MaxSessions,
	}
	s.pingInterval.Store(int64(cfg.Server.PingInterval.Std()))
	return s
}

func (s *echoServer) setPingInterval(d time.Duration) {
	s.pingInterval.Store(int64(d))
}

type frame struct {
	kind int
	data []byte
}

func (s *echoServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.maxSessions > 0 && s.sessions >= s.maxSessions {
		s.mu.Unlock()
		http.Error(w, "session limit reached", http.StatusServiceUnavailable)
		return
	}
	s.sessions++
	s.nextID++
	id := s.nextID
	s.mu.Unlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", zap.Error(err))
		s.dropSession()
		return
	}

	inbox := channel.NewUnbounded[frame]()

	// The reader goroutine bridges the blocking socket into the runtime:
	// frames land in the inbox and the session fiber drains it.
	go func() {
		defer inbox.Close()
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			inbox.Push(nil, frame{kind: kind, data: data})
		}
	}()

	_, err = s.g.Spawn(func(f *fiber.Fiber) error {
		defer conn.Close()
		defer s.dropSession()
		s.logger.Info("session started", zap.Uint64("session", id))
		for {
			deadline := time.Now().Add(s.currentPingInterval())
			fr, st, err := inbox.PopWaitUntil(f, deadline)
			if err != nil {
				return err
			}
			switch st {
			case channel.OK:
				if werr := conn.WriteMessage(fr.kind, fr.data); werr != nil {
					return nil
				}
			case channel.Timeout:
				if werr := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); werr != nil {
					return nil
				}
			case channel.Closed:
				s.logger.Info("session closed", zap.Uint64("session", id))
				return nil
			}
		}
	})
	if err != nil {
		s.logger.Warn("spawn failed", zap.Error(err))
		conn.Close()
		s.dropSession()
	}
}

func (s *echoServer) currentPingInterval() time.Duration {
	d := time.Duration(s.pingInterval.Load())
	if d <= 0 {
		d = 15 * time.Second
	}
	return d
}

func (s *echoServer) dropSession() {
	s.mu.Lock()
	s.sessions--
	s.mu.Unlock()
}

func (s *echoServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.g.Stats()
	s.mu.Lock()
	sessions := s.sessions
	s.mu.Unlock()
	fmt.Fprintf(w, "sessions %d\nlive %d\nspawned %d\ncompleted %d\nparks %d\nwakes %d\nsteals %d\n",
		sessions, stats.Live, stats.Spawned, stats.Completed, stats.Parks, stats.Wakes, stats.Steals)
}
