// Package health probes the service's dependencies and reports the result
// over HTTP (/healthz) and the standard gRPC health service.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"file-sharing-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "unavailable"
)

type Probe func(ctx context.Context) error

type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (r Report) Healthy() bool {
	return r.Status == StatusOK
}

type Checker struct {
	timeout time.Duration
	grpc    *health.Server

	mu     sync.RWMutex
	probes map[string]Probe
}

func New(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{
		timeout: timeout,
		grpc:    health.NewServer(),
		probes:  map[string]Probe{},
	}
}

func (c *Checker) Register(name string, probe Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = probe
}

// Check runs every probe concurrently, each bounded by the checker timeout.
func (c *Checker) Check(ctx context.Context) Report {
	c.mu.RLock()
	names := make([]string, 0, len(c.probes))
	for name := range c.probes {
		names = append(names, name)
	}
	probes := make([]Probe, len(names))
	sort.Strings(names)
	for i, name := range names {
		probes[i] = c.probes[name]
	}
	c.mu.RUnlock()

	log := logger.GetLogger(ctx)
	results := make([]string, len(names))
	var g errgroup.Group
	for i := range probes {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			if err := probes[i](pctx); err != nil {
				log.Warn("dependency probe failed", zap.String("dependency", names[i]), zap.Error(err))
				results[i] = StatusDegraded
			} else {
				results[i] = StatusOK
			}
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Status: StatusOK, Checks: make(map[string]string, len(names))}
	for i, name := range names {
		report.Checks[name] = results[i]
		if results[i] != StatusOK {
			report.Status = StatusDegraded
		}
	}
	c.publish(report)
	return report
}

func (c *Checker) publish(r Report) {
	status := healthpb.HealthCheckResponse_SERVING
	if !r.Healthy() {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	c.grpc.SetServingStatus("", status)
}

// Handler serves GET /healthz: 200 when every dependency answers, else 503.
func (c *Checker) Handler(gc *gin.Context) {
	report := c.Check(gc.Request.Context())
	code := http.StatusOK
	if !report.Healthy() {
		code = http.StatusServiceUnavailable
	}
	gc.JSON(code, report)
}

// GRPCServer is the health service to register on a grpc.Server.
func (c *Checker) GRPCServer() *health.Server {
	return c.grpc
}

// DefaultInterval is used by Run when given a non-positive interval.
const DefaultInterval = 15 * time.Second

// Run re-checks every interval so gRPC watchers see status changes, until
// ctx is done.
func (c *Checker) Run(ctx context.Context, interval time.Duration) {
	log := logger.GetLogger(ctx)
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	healthy := true
	for {
		report := c.Check(ctx)
		if report.Healthy() != healthy {
			healthy = report.Healthy()
			if healthy {
				log.Info("dependencies healthy again")
			} else {
				log.Warn("dependency check failed", zap.Any("checks", report.Checks))
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Shutdown marks the service as not serving.
func (c *Checker) Shutdown() {
	c.grpc.Shutdown()
}
