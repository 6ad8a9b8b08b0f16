package worker

import (
	"context"
	"time"
)

const dnsRefreshInterval = 5 * time.Minute

// Resolver is satisfied by *dnscache.Resolver.
type Resolver interface {
	Refresh(clearUnused bool)
}

// DNSRefresher re-resolves the catalog host so long-running sessions follow
// DNS changes. Entries not looked up since the last refresh are dropped.
type DNSRefresher struct {
	resolver Resolver
	interval time.Duration
}

// NewDNSRefresher creates a refresher running every interval, or every
// five minutes when interval is not positive.
func NewDNSRefresher(r Resolver, interval time.Duration) *DNSRefresher {
	if interval <= 0 {
		interval = dnsRefreshInterval
	}
	return &DNSRefresher{resolver: r, interval: interval}
}

func (d *DNSRefresher) Name() string { return "dns_refresher" }

func (d *DNSRefresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.resolver.Refresh(true)
		}
	}
}
