package worker

import (
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/docweave/docweave/pkg/lifecycle"
)

// Server runs the worker pool and the maintenance scheduler against the
// Redis-backed queues.
type Server struct {
	srv       *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	config    Config
	logger    *slog.Logger
}

// NewServer creates a worker server from the configuration and registers
// the processor's task handlers.
func NewServer(config Config, processor *Processor, logger *slog.Logger) *Server {
	redisOpt := asynq.RedisClientOpt{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: config.Concurrency,
		Queues:      config.Queues(),
	})

	scheduler := asynq.NewScheduler(redisOpt, nil)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeProcess, processor.ProcessTask)
	mux.HandleFunc(TaskTypePrune, processor.ProcessPrune)

	return &Server{
		srv:       srv,
		scheduler: scheduler,
		mux:       mux,
		config:    config,
		logger:    logger.With("system", "worker"),
	}
}

// Start launches the worker pool and the maintenance scheduler, and
// registers their shutdown hooks.
func (s *Server) Start(lc *lifecycle.Coordinator) error {
	s.logger.Info(
		"starting worker server",
		"concurrency", s.config.Concurrency,
		"queues", s.config.Queues(),
	)

	if _, err := s.scheduler.Register(
		s.config.PruneCron,
		asynq.NewTask(TaskTypePrune, nil),
		asynq.Queue(QueueMaintenance),
	); err != nil {
		return fmt.Errorf("register prune schedule: %w", err)
	}

	if err := s.srv.Start(s.mux); err != nil {
		return fmt.Errorf("start worker pool: %w", err)
	}

	if err := s.scheduler.Start(); err != nil {
		s.srv.Shutdown()
		return fmt.Errorf("start scheduler: %w", err)
	}

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		s.logger.Info("stopping worker server")
		s.scheduler.Shutdown()
		s.srv.Shutdown()
	})

	return nil
}
