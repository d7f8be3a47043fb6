package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Admission results. The script returns exactly one of these.
const (
	AdmitOK            = 0
	AdmitSoldOut       = 1
	AdmitDuplicateUser = 2
)

// admitScript checks stock and the per-voucher buyer set, then claims
// one unit and records the buyer in a single atomic step. Stock can
// never go below zero and a user can never be recorded twice, no
// matter how many requests race.
var admitScript = redis.NewScript(`
local stockKey = KEYS[1]
local orderKey = KEYS[2]
local userId = ARGV[1]

if tonumber(redis.call('get', stockKey) or '-1') <= 0 then
    return 1
end

if redis.call('sismember', orderKey, userId) == 1 then
    return 2
end

redis.call('incrby', stockKey, -1)
redis.call('sadd', orderKey, userId)
return 0
`)

// Admitter runs the admission script against Redis. It is the single
// authority on whether a request may proceed to ordering.
type Admitter struct {
	client *redis.Client
}

// NewAdmitter creates an admitter
func NewAdmitter(client *redis.Client) *Admitter {
	return &Admitter{client: client}
}

// StockKey returns the cached stock counter key for a voucher
func StockKey(voucherID int64) string {
	return fmt.Sprintf("seckill:stock:%d", voucherID)
}

// OrderKey returns the buyer set key for a voucher
func OrderKey(voucherID int64) string {
	return fmt.Sprintf("seckill:order:%d", voucherID)
}

// Admit atomically claims one unit of stock for the user. It returns
// AdmitOK, AdmitSoldOut or AdmitDuplicateUser. Any store error means
// the request must be rejected, never waved through.
func (a *Admitter) Admit(ctx context.Context, voucherID, userID int64) (int, error) {
	keys := []string{StockKey(voucherID), OrderKey(voucherID)}
	res, err := admitScript.Run(ctx, a.client, keys, userID).Int()
	if err != nil {
		return -1, fmt.Errorf("admission script failed: %w", err)
	}
	return res, nil
}

// SetStock seeds the cached stock counter for a voucher
func (a *Admitter) SetStock(ctx context.Context, voucherID int64, stock int) error {
	return a.client.Set(ctx, StockKey(voucherID), stock, 0).Err()
}
