package cloudflare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/cloudflare/cloudflare-go"

	"github.com/evanofslack/cloudflare-ddns/internal/metrics"
	"github.com/evanofslack/cloudflare-ddns/internal/provider"
)

type CloudflareProvider struct {
	client  *cloudflare.API
	metrics *metrics.Metrics
}

func New(token string, metrics *metrics.Metrics) (*CloudflareProvider, error) {
	if token == "" {
		return nil, fmt.Errorf("cloudflare API token required")
	}

	client, err := cloudflare.NewWithAPIToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloudflare client: %w", err)
	}

	return &CloudflareProvider{
		client:  client,
		metrics: metrics,
	}, nil
}

// Factory returns a provider.Factory building one CloudflareProvider per
// API token.
func Factory(metrics *metrics.Metrics) provider.Factory {
	return func(token string) (provider.Provider, error) {
		return New(token, metrics)
	}
}

func (p *CloudflareProvider) FindRecordID(ctx context.Context, zoneID, recordName string) (string, error) {
	slog.Debug("Looking up DNS record", "zone", zoneID, "name", recordName)
	start := time.Now()

	records, _, err := p.client.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(zoneID), cloudflare.ListDNSRecordsParams{
		Type: "A",
		Name: recordName,
	})
	if err != nil {
		p.metrics.IncDNSRequest("find", zoneID, false)
		return "", fmt.Errorf("list DNS records: %w", classify(err))
	}
	if len(records) == 0 {
		p.metrics.IncDNSRequest("find", zoneID, false)
		return "", fmt.Errorf("no A record named %s in zone %s: %w", recordName, zoneID, provider.ErrNotFound)
	}

	p.metrics.IncDNSRequest("find", zoneID, true)
	slog.Debug("Found DNS record", "zone", zoneID, "name", recordName, "id", records[0].ID, "duration", time.Since(start))
	return records[0].ID, nil
}

func (p *CloudflareProvider) UpdateRecord(ctx context.Context, zoneID, recordID string, record provider.Record, ip netip.Addr) error {
	slog.Info("Updating DNS record", "zone", zoneID, "name", record.Name, "content", ip.String(), "proxied", record.Proxied)
	start := time.Now()

	proxied := record.Proxied
	params := cloudflare.UpdateDNSRecordParams{
		ID:      recordID,
		Type:    "A",
		Name:    record.Name,
		Content: ip.String(),
		TTL:     record.TTL,
		Proxied: &proxied,
	}

	_, err := p.client.UpdateDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), params)
	if err != nil {
		p.metrics.IncDNSRequest("update", zoneID, false)
		return fmt.Errorf("update DNS record: %w", classify(err))
	}

	p.metrics.IncDNSRequest("update", zoneID, true)
	slog.Debug("Updated DNS record", "zone", zoneID, "name", record.Name, "duration", time.Since(start))
	return nil
}

// classify maps cloudflare-go's typed errors onto the provider sentinels so
// callers can branch with errors.Is without importing this package.
func classify(err error) error {
	var (
		authnErr *cloudflare.AuthenticationError
		authzErr *cloudflare.AuthorizationError
		nfErr    *cloudflare.NotFoundError
		rlErr    *cloudflare.RatelimitError
	)
	switch {
	case errors.As(err, &authnErr), errors.As(err, &authzErr):
		return fmt.Errorf("%w: %v", provider.ErrAuth, err)
	case errors.As(err, &nfErr):
		return fmt.Errorf("%w: %v", provider.ErrNotFound, err)
	case errors.As(err, &rlErr):
		return fmt.Errorf("%w: %v", provider.ErrRateLimited, err)
	default:
		return err
	}
}
