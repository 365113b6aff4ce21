package ingest

import (
	"context"

	"github.com/okian/signal-gateway/pkg/logger"
	"github.com/okian/signal-gateway/pkg/metrics"
)

// HealthSnapshot is the reachability of every sink at one point in time.
type HealthSnapshot struct {
	Sinks      map[string]bool `json:"sinks"`
	Order      []string        `json:"-"`
	AllHealthy bool            `json:"all_healthy"`
}

// Unhealthy returns the names of unreachable sinks in registration order.
func (h HealthSnapshot) Unhealthy() []string {
	var out []string
	for _, name := range h.Order {
		if !h.Sinks[name] {
			out = append(out, name)
		}
	}
	return out
}

// HealthAggregator checks every sink concurrently.
type HealthAggregator struct {
	regs []Registration
	cfg  settings
}

// NewHealthAggregator keeps a private copy of regs. An empty set is allowed
// and always reads healthy; nil sinks and duplicate names are rejected.
func NewHealthAggregator(regs []Registration, opts ...Option) (*HealthAggregator, error) {
	if err := checkSinks(regs); err != nil {
		return nil, err
	}
	return &HealthAggregator{
		regs: append([]Registration(nil), regs...),
		cfg:  newSettings(opts),
	}, nil
}

// CheckAll never fails: check errors, panics and timeouts all read as false.
// The snapshot is recomputed on every call.
func (h *HealthAggregator) CheckAll(ctx context.Context) HealthSnapshot {
	errs := fanOut(ctx, len(h.regs), 0, func(ctx context.Context, i int) error {
		return ping(ctx, h.cfg, h.regs[i])
	})

	snap := HealthSnapshot{
		Sinks:      make(map[string]bool, len(h.regs)),
		Order:      make([]string, len(h.regs)),
		AllHealthy: true,
	}
	for i, r := range h.regs {
		name := r.Sink.Name()
		healthy := errs[i] == nil
		snap.Order[i] = name
		snap.Sinks[name] = healthy
		snap.AllHealthy = snap.AllHealthy && healthy
		metrics.UpdateSinkHealth(name, healthy)
		if !healthy {
			h.cfg.logger.Warn(ctx, "sink unhealthy", logger.String("sink", name), logger.Error(errs[i]))
		}
	}
	return snap
}

// CheckOne checks a single sink by name. found is false for unknown names.
func (h *HealthAggregator) CheckOne(ctx context.Context, name string) (healthy, found bool) {
	for _, r := range h.regs {
		if r.Sink.Name() != name {
			continue
		}
		healthy = ping(ctx, h.cfg, r) == nil
		metrics.UpdateSinkHealth(name, healthy)
		return healthy, true
	}
	return false, false
}

func ping(ctx context.Context, cfg settings, r Registration) error {
	return invoke(ctx, cfg.logger, r.Sink.Name(), OpHealth, r.HealthTimeout, func(ctx context.Context) error {
		ok, err := r.Sink.HealthCheck(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return errNotReachable
		}
		return nil
	})
}
