package provider

import (
	"context"
	"net/netip"
)

// Provider wraps the remote DNS service's record lookup and update RPCs.
// FindRecordID is read-only; UpdateRecord is the only call that mutates
// remote state.
type Provider interface {
	FindRecordID(ctx context.Context, zoneID, recordName string) (string, error)
	UpdateRecord(ctx context.Context, zoneID, recordID string, record Record, ip netip.Addr) error
}

// Factory builds a Provider for one API credential. Targets sharing a
// credential share the client built for it.
type Factory func(token string) (Provider, error)

// Record carries the address record fields pushed on update.
type Record struct {
	Name    string
	Proxied bool
	TTL     int
}
