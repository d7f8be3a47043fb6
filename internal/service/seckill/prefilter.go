package seckill

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/bits-and-blooms/bloom/v3"
)

const (
	expectedCampaigns = 100000
	falsePositiveRate = 0.01
)

var soldOutMarker = []byte{1}

// Prefilter rejects hopeless requests before they reach Redis. The
// bloom filter knows every warmed campaign, so ids that were never
// warmed are turned away immediately. The local cache remembers
// campaigns this instance saw sell out, absorbing the thundering herd
// that keeps hammering an exhausted sale.
type Prefilter struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
	local  *bigcache.BigCache
}

// NewPrefilter creates a prefilter. The sold-out memory expires after
// the given TTL so a restocked campaign becomes reachable again.
func NewPrefilter(soldOutTTL time.Duration) (*Prefilter, error) {
	if soldOutTTL <= 0 {
		soldOutTTL = 5 * time.Minute
	}
	local, err := bigcache.New(context.Background(), bigcache.DefaultConfig(soldOutTTL))
	if err != nil {
		return nil, err
	}
	return &Prefilter{
		filter: bloom.NewWithEstimates(expectedCampaigns, falsePositiveRate),
		local:  local,
	}, nil
}

// AddCampaign registers a warmed campaign
func (p *Prefilter) AddCampaign(voucherID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filter.Add(voucherKey(voucherID))
}

// MightExist reports whether the campaign could have been warmed.
// False is definitive, true may be a false positive.
func (p *Prefilter) MightExist(voucherID int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.filter.Test(voucherKey(voucherID))
}

// MarkSoldOut remembers locally that the campaign is exhausted
func (p *Prefilter) MarkSoldOut(voucherID int64) {
	_ = p.local.Set(string(voucherKey(voucherID)), soldOutMarker)
}

// IsSoldOut reports whether this instance saw the campaign sell out
func (p *Prefilter) IsSoldOut(voucherID int64) bool {
	_, err := p.local.Get(string(voucherKey(voucherID)))
	return err == nil
}

// ClearSoldOut forgets the local sold-out marker, used when a
// campaign is rewarmed with fresh stock.
func (p *Prefilter) ClearSoldOut(voucherID int64) {
	_ = p.local.Delete(string(voucherKey(voucherID)))
}

// Close releases the local cache
func (p *Prefilter) Close() error {
	return p.local.Close()
}

func voucherKey(voucherID int64) []byte {
	return []byte(strconv.FormatInt(voucherID, 10))
}
