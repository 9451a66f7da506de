// Package readiness reports whether the server's dependencies are reachable
// through the standard gRPC health service.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/pwkeeper/internal/logging"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const probeTimeout = 3 * time.Second

type Checker struct {
	probes   []Probe
	health   *health.Server
	services []string
	interval time.Duration
	logger   logging.Logger
}

// NewChecker reports into hs for the overall ("") status and for each of
// services.
func NewChecker(hs *health.Server, interval time.Duration, l logging.Logger, services []string, probes ...Probe) *Checker {
	return &Checker{
		probes:   probes,
		health:   hs,
		services: append([]string{""}, services...),
		interval: interval,
		logger:   l.With("module", "readiness"),
	}
}

// Check runs every probe and joins the failures.
func (c *Checker) Check(ctx context.Context) error {
	var errs []error
	for _, p := range c.probes {
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := p.Check(pctx)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Update runs the probes once and publishes the result.
func (c *Checker) Update(ctx context.Context) bool {
	st := healthpb.HealthCheckResponse_SERVING
	if err := c.Check(ctx); err != nil {
		c.logger.Warn(ctx, "not ready", "error", err)
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}

	for _, svc := range c.services {
		c.health.SetServingStatus(svc, st)
	}
	return st == healthpb.HealthCheckResponse_SERVING
}

// Run updates the status every interval until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Update(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Update(ctx)
		}
	}
}
