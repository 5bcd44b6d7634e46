package configcache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/myanride/dispatch/internal/pricing"
	"github.com/myanride/dispatch/pkg/logger"
)

// Source is the persistence the cache loads from.
type Source interface {
	ListPricingConfigs(ctx context.Context) ([]pricing.Config, error)
	ListTownshipRules(ctx context.Context) ([]pricing.TownshipRule, error)
	ListDispatchRounds(ctx context.Context) ([]pricing.DispatchRoundRow, error)
}

// DispatchRound is one attempt cycle of the offer protocol: search radius
// plus offer timeout. Rounds escalate radius on exhaustion.
type DispatchRound struct {
	RoundIndex   int
	RadiusMeters float64
	Interval     time.Duration
}

// DefaultDispatchRounds is used when no admin configuration exists.
var DefaultDispatchRounds = []DispatchRound{
	{RoundIndex: 1, RadiusMeters: 800, Interval: 20 * time.Second},
	{RoundIndex: 2, RadiusMeters: 1500, Interval: 20 * time.Second},
	{RoundIndex: 3, RadiusMeters: 2500, Interval: 20 * time.Second},
}

// Cache is a refreshable snapshot of pricing configuration, township
// surcharge rules and dispatch round definitions. Each snapshot is replaced
// wholesale under a copy-on-write discipline: readers always observe either
// the old or the new complete mapping, never a mix. Refreshes are serialized
// against each other but never block readers. Refresh is triggered at startup
// and after administrative writes; there is no background polling.
type Cache struct {
	source Source

	refreshMu sync.Mutex
	pricing   atomic.Pointer[map[string]pricing.Config]
	townships atomic.Pointer[map[string]decimal.Decimal]
	rounds    atomic.Pointer[[]DispatchRound]
}

// New creates an empty cache over the given source. Call RefreshAll before
// serving reads; until then every read resolves through its fallback.
func New(source Source) *Cache {
	c := &Cache{source: source}
	emptyPricing := map[string]pricing.Config{}
	emptyTownships := map[string]decimal.Decimal{}
	emptyRounds := []DispatchRound{}
	c.pricing.Store(&emptyPricing)
	c.townships.Store(&emptyTownships)
	c.rounds.Store(&emptyRounds)
	return c
}

// RefreshPricing reloads the pricing configs and swaps the snapshot.
func (c *Cache) RefreshPricing(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	configs, err := c.source.ListPricingConfigs(ctx)
	if err != nil {
		return err
	}
	snapshot := make(map[string]pricing.Config, len(configs))
	for _, cfg := range configs {
		snapshot[strings.ToUpper(strings.TrimSpace(cfg.VehicleClass))] = cfg
	}
	c.pricing.Store(&snapshot)
	return nil
}

// RefreshTownshipRules reloads the township surcharges and swaps the snapshot.
func (c *Cache) RefreshTownshipRules(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	rules, err := c.source.ListTownshipRules(ctx)
	if err != nil {
		return err
	}
	snapshot := make(map[string]decimal.Decimal, len(rules))
	for _, rule := range rules {
		snapshot[normalizeTownship(rule.Township)] = rule.Surcharge
	}
	c.townships.Store(&snapshot)
	return nil
}

// RefreshDispatchRounds reloads the dispatch round list and swaps the snapshot.
func (c *Cache) RefreshDispatchRounds(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	rows, err := c.source.ListDispatchRounds(ctx)
	if err != nil {
		return err
	}
	snapshot := make([]DispatchRound, 0, len(rows))
	for _, row := range rows {
		snapshot = append(snapshot, DispatchRound{
			RoundIndex:   row.RoundIndex,
			RadiusMeters: row.RadiusMeters,
			Interval:     time.Duration(row.IntervalMs) * time.Millisecond,
		})
	}
	c.rounds.Store(&snapshot)
	return nil
}

// RefreshAll refreshes the three snapshots independently: a failure in one
// does not prevent the others from refreshing. It logs the resulting sizes.
func (c *Cache) RefreshAll(ctx context.Context) error {
	var firstErr error
	if err := c.RefreshPricing(ctx); err != nil {
		firstErr = err
		logger.Error("pricing config refresh failed", zap.Error(err))
	}
	if err := c.RefreshTownshipRules(ctx); err != nil {
		if firstErr == nil {
			firstErr = err
		}
		logger.Error("township rule refresh failed", zap.Error(err))
	}
	if err := c.RefreshDispatchRounds(ctx); err != nil {
		if firstErr == nil {
			firstErr = err
		}
		logger.Error("dispatch round refresh failed", zap.Error(err))
	}

	logger.Info("configuration cache refreshed",
		zap.Int("pricing_configs", len(*c.pricing.Load())),
		zap.Int("township_rules", len(*c.townships.Load())),
		zap.Int("dispatch_rounds", len(*c.rounds.Load())),
	)
	return firstErr
}

// GetConfig resolves pricing for a vehicle class through the fallback chain:
// the class itself, then STANDARD, then the built-in defaults. It never fails.
func (c *Cache) GetConfig(vehicleClass string) pricing.Config {
	class := strings.ToUpper(strings.TrimSpace(vehicleClass))
	snapshot := *c.pricing.Load()
	if cfg, ok := snapshot[class]; ok {
		return cfg
	}
	if cfg, ok := snapshot[pricing.DefaultVehicleClass]; ok {
		return cfg
	}
	return pricing.DefaultConfig(class)
}

// VehicleClasses lists every class with a configured pricing row, sorted for
// stable output. STANDARD is always present so an empty table still quotes.
func (c *Cache) VehicleClasses() []string {
	snapshot := *c.pricing.Load()
	classes := make([]string, 0, len(snapshot)+1)
	for class := range snapshot {
		classes = append(classes, class)
	}
	if _, ok := snapshot[pricing.DefaultVehicleClass]; !ok {
		classes = append(classes, pricing.DefaultVehicleClass)
	}
	sort.Strings(classes)
	return classes
}

// GetTownshipCharge returns the cross-township surcharge for a trip: zero
// when pickup and dropoff are the same township (case/whitespace-insensitive),
// otherwise the sum of the two townships' configured surcharges, each zero
// when absent.
func (c *Cache) GetTownshipCharge(origin, dest string) decimal.Decimal {
	o := normalizeTownship(origin)
	d := normalizeTownship(dest)
	if o == d {
		return decimal.Zero
	}

	snapshot := *c.townships.Load()
	charge := decimal.Zero
	if s, ok := snapshot[o]; ok {
		charge = charge.Add(s)
	}
	if s, ok := snapshot[d]; ok {
		charge = charge.Add(s)
	}
	return charge
}

// GetDispatchRounds returns the configured round list, or the built-in
// three-round default when no admin rows exist.
func (c *Cache) GetDispatchRounds() []DispatchRound {
	snapshot := *c.rounds.Load()
	if len(snapshot) == 0 {
		return DefaultDispatchRounds
	}
	return snapshot
}

func normalizeTownship(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
