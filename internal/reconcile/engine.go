package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/evanofslack/cloudflare-ddns/internal/metrics"
	"github.com/evanofslack/cloudflare-ddns/internal/provider"
)

type Engine interface {
	ReconcileAll(ctx context.Context, ip netip.Addr) Results
}

type engine struct {
	targets []*Target
	clients []provider.Provider // aligned with targets
	metrics *metrics.Metrics
}

// NewEngine builds one DNS client per distinct credential up front, so a bad
// token surfaces at startup instead of mid-cycle.
func NewEngine(targets []*Target, factory provider.Factory, metrics *metrics.Metrics) (Engine, error) {
	byToken := make(map[string]provider.Provider)
	clients := make([]provider.Provider, 0, len(targets))

	for _, t := range targets {
		client, ok := byToken[t.Token]
		if !ok {
			var err error
			client, err = factory(t.Token)
			if err != nil {
				return nil, fmt.Errorf("build DNS client for %s: %w", t.RecordName, err)
			}
			byToken[t.Token] = client
		}
		clients = append(clients, client)
	}

	metrics.SetTargets(len(targets))
	return &engine{
		targets: targets,
		clients: clients,
		metrics: metrics,
	}, nil
}

// ReconcileAll runs every target in insertion order against the resolved IP.
// One target's failure never blocks the rest.
func (e *engine) ReconcileAll(ctx context.Context, ip netip.Addr) Results {
	results := make(Results, 0, len(e.targets))
	for i, t := range e.targets {
		result := e.reconcile(ctx, t, e.clients[i], ip)
		e.logResult(result)
		e.metrics.IncTargetOutcome(result.Record, string(result.Outcome))
		results = append(results, result)
	}
	return results
}

func (e *engine) reconcile(ctx context.Context, t *Target, client provider.Provider, ip netip.Addr) Result {
	result := Result{Record: t.RecordName, Zone: t.ZoneID}

	if t.lastKnownIP.IsValid() && t.lastKnownIP == ip {
		result.Outcome = OutcomeUnchanged
		return result
	}

	if t.recordID == "" {
		id, err := client.FindRecordID(ctx, t.ZoneID, t.RecordName)
		if err != nil {
			result.Outcome = OutcomeFailed
			result.Err = fmt.Errorf("find record id: %w", err)
			return result
		}
		t.recordID = id
	}

	record := provider.Record{
		Name:    t.RecordName,
		Proxied: t.Proxied,
		TTL:     t.TTL,
	}
	if err := client.UpdateRecord(ctx, t.ZoneID, t.recordID, record, ip); err != nil {
		// lastKnownIP stays as-is so the next cycle retries this transition.
		result.Outcome = OutcomeFailed
		result.Err = err
		return result
	}

	t.lastKnownIP = ip
	result.Outcome = OutcomeUpdated
	return result
}

func (e *engine) logResult(r Result) {
	switch r.Outcome {
	case OutcomeUnchanged:
		slog.Debug("Record unchanged", "record", r.Record, "zone", r.Zone)
	case OutcomeUpdated:
		slog.Info("Record updated", "record", r.Record, "zone", r.Zone)
	case OutcomeFailed:
		switch {
		case errors.Is(r.Err, provider.ErrAuth):
			slog.Error("Record update rejected, check API token", "record", r.Record, "zone", r.Zone, "error", r.Err)
		case errors.Is(r.Err, provider.ErrNotFound):
			slog.Error("Record not found, check zone id and record name", "record", r.Record, "zone", r.Zone, "error", r.Err)
		default:
			slog.Error("Record update failed", "record", r.Record, "zone", r.Zone, "error", r.Err)
		}
	}
}
