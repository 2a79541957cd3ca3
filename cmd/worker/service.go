package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/multierr"

	"github.com/angelmondragon/gearshare-backend/pkg/logger"
)

type runner interface {
	Run(ctx context.Context) error
}

// runnerFunc lets plain functions, such as the metrics listener, run beside
// the consumers.
type runnerFunc func(ctx context.Context) error

func (f runnerFunc) Run(ctx context.Context) error { return f(ctx) }

type pinger interface {
	Ping(ctx context.Context) error
}

type ServiceParams struct {
	Logger *logger.Logger
	// Dependencies are pinged once before any consumer starts.
	Dependencies map[string]pinger
	Consumers    map[string]runner
}

// Service hosts the Pub/Sub consumers of the worker binary. When one consumer
// fails the others are stopped and every error is returned.
type Service struct {
	logg         *logger.Logger
	dependencies map[string]pinger
	consumers    map[string]runner
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if len(params.Consumers) == 0 {
		return nil, errors.New("at least one consumer is required")
	}
	for name, c := range params.Consumers {
		if c == nil {
			return nil, fmt.Errorf("consumer %s is nil", name)
		}
	}
	return &Service{
		logg:         params.Logger,
		dependencies: params.Dependencies,
		consumers:    params.Consumers,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for _, name := range sortedKeys(s.dependencies) {
		dep := s.dependencies[name]
		if dep == nil {
			continue
		}
		if err := dep.Ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}
	s.logg.Info(ctx, "worker.dependencies.ready")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		name string
		err  error
	}
	results := make(chan result, len(s.consumers))
	for name, c := range s.consumers {
		go func() {
			results <- result{name: name, err: c.Run(runCtx)}
		}()
	}

	var errs error
	for range s.consumers {
		res := <-results
		if res.err != nil && !errors.Is(res.err, context.Canceled) {
			s.logg.Error(s.logg.WithField(ctx, "consumer", res.name), "worker.consumer.failed", res.err)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", res.name, res.err))
		}
		cancel()
	}
	if errs != nil {
		return errs
	}
	return ctx.Err()
}

func sortedKeys(m map[string]pinger) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
