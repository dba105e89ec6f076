package sim

import (
	"context"
	"time"

	"github.com/simflux/simflux/internal/domain/sim"
)

// SimPager walks the provider SIM inventory page by page. The cursor is the
// opaque page token from the API, so a listing interrupted mid-way can be
// resumed later by seeding the cursor from persisted state.
type SimPager struct {
	api    ProviderAPI
	cursor string
	done   bool
}

// NewSimPager starts a listing from the beginning.
func NewSimPager(api ProviderAPI) *SimPager {
	return &SimPager{api: api}
}

// Next returns the next page, or nil when the listing is exhausted.
func (p *SimPager) Next(ctx context.Context) ([]sim.RemoteSim, error) {
	if p.done {
		return nil, nil
	}
	sims, next, err := p.api.ListSims(ctx, p.cursor)
	if err != nil {
		return nil, err
	}
	p.cursor = next
	p.done = next == ""
	return sims, nil
}

// Done reports whether the listing has been fully consumed.
func (p *SimPager) Done() bool {
	return p.done
}

// Cursor returns the token that resumes the listing after the last returned
// page. Empty before the first page and after the last. While a page fetch
// keeps failing, the cursor keeps pointing at the failed page.
func (p *SimPager) Cursor() string {
	if p.done {
		return ""
	}
	return p.cursor
}

// SetCursor resumes the listing from a previously saved token.
func (p *SimPager) SetCursor(cursor string) {
	p.cursor = cursor
	p.done = false
}

// UsagePager walks the usage records of one ICCID over a time window.
type UsagePager struct {
	api    ProviderAPI
	iccid  string
	from   time.Time
	to     time.Time
	cursor string
	done   bool
}

// NewUsagePager starts a usage listing for [from, to).
func NewUsagePager(api ProviderAPI, iccid string, from, to time.Time) *UsagePager {
	return &UsagePager{api: api, iccid: iccid, from: from, to: to}
}

// Next returns the next page of usage records, or nil when exhausted.
func (p *UsagePager) Next(ctx context.Context) ([]sim.UsageRecord, error) {
	if p.done {
		return nil, nil
	}
	records, next, err := p.api.GetUsage(ctx, p.iccid, p.from, p.to, p.cursor)
	if err != nil {
		return nil, err
	}
	p.cursor = next
	p.done = next == ""
	return records, nil
}

// Done reports whether the listing has been fully consumed.
func (p *UsagePager) Done() bool {
	return p.done
}
