package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"foundry/internal/config"
	"foundry/internal/logging"
)

// Supervisor launches the stage processes and keeps them alive: a service
// that dies is restarted on the next monitor tick, without any restart limit.
// A file lock enforces a single supervisor per data directory.
type Supervisor struct {
	cfg    *config.Config
	runner Runner
	specs  []ServiceSpec
	logger *slog.Logger

	lockPath string
	lock     *flock.Flock

	mu       sync.Mutex
	procs    map[string]Process
	restarts map[string]int
}

// New constructs a supervisor for the given services.
func New(cfg *config.Config, runner Runner, specs []ServiceSpec, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, "foundry.lock")
	return &Supervisor{
		cfg:      cfg,
		runner:   runner,
		specs:    specs,
		logger:   logger,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		procs:    make(map[string]Process),
		restarts: make(map[string]int),
	}
}

// Run starts every service and monitors them until the context is cancelled,
// then shuts them down gracefully. It blocks for the supervisor's lifetime.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another foundry supervisor is already running")
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("failed to release supervisor lock", logging.Error(err))
		}
	}()

	s.startAll()

	interval := time.Duration(s.cfg.Supervisor.MonitorIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("supervisor running",
		logging.Int("services", len(s.specs)),
		logging.Duration("monitor_interval", interval),
		logging.String("lock", s.lockPath),
	)

	for {
		select {
		case <-ctx.Done():
			s.stopAll()
			s.logger.Info("supervisor stopped")
			return nil
		case <-ticker.C:
			s.checkServices()
		}
	}
}

// startAll launches every configured service. A launch failure is logged and
// left to the monitor loop: the next tick retries it like any dead service.
func (s *Supervisor) startAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, spec := range s.specs {
		proc, err := s.runner.Start(spec)
		if err != nil {
			s.logger.Error("failed to start service",
				logging.String("service", spec.Name),
				logging.Error(err),
			)
			continue
		}
		s.procs[spec.Name] = proc
		s.logger.Info("service started",
			logging.String("service", spec.Name),
			logging.Int("pid", proc.PID()),
		)
	}
}

// checkServices restarts any service whose process has exited.
func (s *Supervisor) checkServices() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, spec := range s.specs {
		proc, known := s.procs[spec.Name]
		if known && proc.Alive() {
			continue
		}
		if known {
			s.logger.Warn("service died, restarting",
				logging.String("service", spec.Name),
				logging.Int("pid", proc.PID()),
				logging.Int("restarts", s.restarts[spec.Name]+1),
			)
		}

		replacement, err := s.runner.Start(spec)
		if err != nil {
			s.logger.Error("failed to restart service",
				logging.String("service", spec.Name),
				logging.Error(err),
			)
			delete(s.procs, spec.Name)
			continue
		}
		s.procs[spec.Name] = replacement
		if known {
			s.restarts[spec.Name]++
		}
		s.logger.Info("service started",
			logging.String("service", spec.Name),
			logging.Int("pid", replacement.PID()),
		)
	}
}

// stopAll terminates every service, escalating to a kill after the grace
// period elapses.
func (s *Supervisor) stopAll() {
	grace := time.Duration(s.cfg.Supervisor.StopGraceSeconds) * time.Second
	if grace <= 0 {
		grace = 5 * time.Second
	}

	s.mu.Lock()
	procs := make(map[string]Process, len(s.procs))
	for name, proc := range s.procs {
		procs[name] = proc
	}
	s.procs = make(map[string]Process)
	s.mu.Unlock()

	for name, proc := range procs {
		if !proc.Alive() {
			continue
		}
		s.logger.Info("stopping service", logging.String("service", name), logging.Int("pid", proc.PID()))
		if err := proc.Terminate(); err != nil {
			s.logger.Warn("terminate failed", logging.String("service", name), logging.Error(err))
		}
	}

	deadline := time.NewTimer(grace)
	defer deadline.Stop()
	for name, proc := range procs {
		select {
		case <-proc.Done():
			s.logger.Info("service stopped", logging.String("service", name))
		case <-deadline.C:
			s.killRemaining(procs)
			return
		}
	}
}

func (s *Supervisor) killRemaining(procs map[string]Process) {
	for name, proc := range procs {
		if !proc.Alive() {
			continue
		}
		s.logger.Warn("service did not stop in time, killing",
			logging.String("service", name),
			logging.Int("pid", proc.PID()),
		)
		if err := proc.Kill(); err != nil {
			s.logger.Error("kill failed", logging.String("service", name), logging.Error(err))
			continue
		}
		<-proc.Done()
	}
}

// RestartCount reports how many times the named service has been restarted.
func (s *Supervisor) RestartCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts[name]
}
