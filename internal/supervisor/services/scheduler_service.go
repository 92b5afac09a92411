// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package services

import (
	"context"
	"fmt"
)

// StartStopper is a component with an explicit Start/Stop lifecycle, such
// as *scheduler.Scheduler.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop() error
}

// SchedulerService adapts a StartStopper to suture: Start, block until
// canceled, Stop.
type SchedulerService struct {
	component StartStopper
	name      string
}

// NewSchedulerService wraps component under name.
func NewSchedulerService(name string, component StartStopper) *SchedulerService {
	return &SchedulerService{component: component, name: name}
}

// Serve implements suture.Service. A failed Start is returned so suture
// retries it with backoff.
func (s *SchedulerService) Serve(ctx context.Context) error {
	if err := s.component.Start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", s.name, err)
	}

	<-ctx.Done()

	if err := s.component.Stop(); err != nil {
		return fmt.Errorf("%s stop failed: %w", s.name, err)
	}
	return ctx.Err()
}

func (s *SchedulerService) String() string {
	return s.name
}
