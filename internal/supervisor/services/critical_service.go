// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/thejerf/suture/v4"
)

// Service is the lifecycle shared by supervised components.
type Service interface {
	Serve(ctx context.Context) error
}

// CriticalService wraps a service whose fatal errors must stop the whole
// process instead of being restarted.
//
// When the wrapped service returns an error matching one of the fatal
// sentinels, Serve returns suture.ErrTerminateSupervisorTree so the root
// supervisor unwinds. The cause is kept and available through Cause.
type CriticalService struct {
	svc   Service
	name  string
	fatal []error
	cause chan error
}

// NewCriticalService wraps svc. name identifies it in supervisor events.
func NewCriticalService(svc Service, name string, fatal ...error) *CriticalService {
	return &CriticalService{
		svc:   svc,
		name:  name,
		fatal: fatal,
		cause: make(chan error, 1),
	}
}

// Serve implements suture.Service.
func (c *CriticalService) Serve(ctx context.Context) error {
	err := c.svc.Serve(ctx)
	if ctx.Err() != nil {
		return err
	}
	if err == nil {
		return c.terminate(fmt.Errorf("%s exited", c.name))
	}
	for _, f := range c.fatal {
		if errors.Is(err, f) {
			return c.terminate(err)
		}
	}
	return err
}

func (c *CriticalService) terminate(err error) error {
	select {
	case c.cause <- err:
	default:
	}
	return suture.ErrTerminateSupervisorTree
}

// Cause returns the error that terminated the tree, if any.
func (c *CriticalService) Cause() error {
	select {
	case err := <-c.cause:
		return err
	default:
		return nil
	}
}

// String implements fmt.Stringer for logging.
func (c *CriticalService) String() string {
	return c.name
}
