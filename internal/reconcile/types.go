package reconcile

import (
	"net/netip"

	"github.com/evanofslack/cloudflare-ddns/internal/config"
)

// Outcome is the per-target result of one reconciliation attempt. It is
// reported through logs and metrics, never stored.
type Outcome string

const (
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeUpdated   Outcome = "updated"
	OutcomeFailed    Outcome = "failed"
)

type Result struct {
	Record  string
	Zone    string
	Outcome Outcome
	Err     error
}

type Results []Result

func (rs Results) Failed() int {
	n := 0
	for _, r := range rs {
		if r.Outcome == OutcomeFailed {
			n++
		}
	}
	return n
}

func (rs Results) Updated() int {
	n := 0
	for _, r := range rs {
		if r.Outcome == OutcomeUpdated {
			n++
		}
	}
	return n
}

// Target is one DNS address record kept in sync. recordID is resolved lazily
// on first use and cached for the process lifetime; lastKnownIP only advances
// after a successful update, so a failed push is retried on the next cycle.
// Neither survives a restart: the first cycle always treats the resolved IP
// as changed.
type Target struct {
	Token      string
	ZoneID     string
	RecordName string
	Proxied    bool
	TTL        int

	recordID    string
	lastKnownIP netip.Addr
}

func NewTarget(cfg config.Target) *Target {
	return &Target{
		Token:      cfg.Token,
		ZoneID:     cfg.ZoneID,
		RecordName: cfg.RecordName,
		Proxied:    cfg.ProxiedOrDefault(),
		TTL:        cfg.TTL,
	}
}

func TargetsFromConfig(cfgs []config.Target) []*Target {
	targets := make([]*Target, 0, len(cfgs))
	for _, cfg := range cfgs {
		targets = append(targets, NewTarget(cfg))
	}
	return targets
}
