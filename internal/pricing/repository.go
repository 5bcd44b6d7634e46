package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository provides read/write access to pricing configuration, township
// surcharge rules and dispatch round definitions.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new pricing repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// DispatchRoundRow is a dispatch round as stored, ordered by round_index.
type DispatchRoundRow struct {
	RoundIndex   int     `json:"round_index" db:"round_index"`
	RadiusMeters float64 `json:"radius_meters" db:"radius_meters"`
	IntervalMs   int     `json:"interval_ms" db:"interval_ms"`
}

// ListPricingConfigs returns all pricing configs keyed by vehicle class.
func (r *Repository) ListPricingConfigs(ctx context.Context) ([]Config, error) {
	rows, err := r.db.Query(ctx, `
		SELECT vehicle_class, base_fare, per_km_rate, time_rate, booking_fee,
		       surge_multiplier, currency, band_policy,
		       time_windows, distance_bands, special_days, updated_at
		FROM pricing_configs
		ORDER BY vehicle_class`)
	if err != nil {
		return nil, fmt.Errorf("query pricing configs: %w", err)
	}
	defer rows.Close()

	var configs []Config
	for rows.Next() {
		var cfg Config
		var timeWindows, distanceBands, specialDays []byte
		err := rows.Scan(
			&cfg.VehicleClass, &cfg.BaseFare, &cfg.PerKmRate, &cfg.TimeRate,
			&cfg.BookingFee, &cfg.SurgeMultiplier, &cfg.Currency, &cfg.BandPolicy,
			&timeWindows, &distanceBands, &specialDays, &cfg.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan pricing config: %w", err)
		}
		if err := unmarshalRules(timeWindows, &cfg.TimeWindows); err != nil {
			return nil, fmt.Errorf("time windows for %s: %w", cfg.VehicleClass, err)
		}
		if err := unmarshalRules(distanceBands, &cfg.DistanceBands); err != nil {
			return nil, fmt.Errorf("distance bands for %s: %w", cfg.VehicleClass, err)
		}
		if err := unmarshalRules(specialDays, &cfg.SpecialDays); err != nil {
			return nil, fmt.Errorf("special days for %s: %w", cfg.VehicleClass, err)
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// UpsertPricingConfig inserts or replaces the config for one vehicle class.
func (r *Repository) UpsertPricingConfig(ctx context.Context, cfg Config) error {
	timeWindows, err := json.Marshal(cfg.TimeWindows)
	if err != nil {
		return fmt.Errorf("marshal time windows: %w", err)
	}
	distanceBands, err := json.Marshal(cfg.DistanceBands)
	if err != nil {
		return fmt.Errorf("marshal distance bands: %w", err)
	}
	specialDays, err := json.Marshal(cfg.SpecialDays)
	if err != nil {
		return fmt.Errorf("marshal special days: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO pricing_configs (
			vehicle_class, base_fare, per_km_rate, time_rate, booking_fee,
			surge_multiplier, currency, band_policy,
			time_windows, distance_bands, special_days, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (vehicle_class) DO UPDATE SET
			base_fare = EXCLUDED.base_fare,
			per_km_rate = EXCLUDED.per_km_rate,
			time_rate = EXCLUDED.time_rate,
			booking_fee = EXCLUDED.booking_fee,
			surge_multiplier = EXCLUDED.surge_multiplier,
			currency = EXCLUDED.currency,
			band_policy = EXCLUDED.band_policy,
			time_windows = EXCLUDED.time_windows,
			distance_bands = EXCLUDED.distance_bands,
			special_days = EXCLUDED.special_days,
			updated_at = NOW()`,
		strings.ToUpper(strings.TrimSpace(cfg.VehicleClass)),
		cfg.BaseFare, cfg.PerKmRate, cfg.TimeRate, cfg.BookingFee,
		cfg.SurgeMultiplier, cfg.Currency, string(cfg.BandPolicy),
		timeWindows, distanceBands, specialDays,
	)
	return err
}

// DeletePricingConfig removes the config for one vehicle class.
func (r *Repository) DeletePricingConfig(ctx context.Context, vehicleClass string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM pricing_configs WHERE vehicle_class = $1`,
		strings.ToUpper(strings.TrimSpace(vehicleClass)),
	)
	return err
}

// ListTownshipRules returns all township surcharge rules.
func (r *Repository) ListTownshipRules(ctx context.Context) ([]TownshipRule, error) {
	rows, err := r.db.Query(ctx, `
		SELECT township, surcharge, updated_at
		FROM township_rules
		ORDER BY township`)
	if err != nil {
		return nil, fmt.Errorf("query township rules: %w", err)
	}
	defer rows.Close()

	var rules []TownshipRule
	for rows.Next() {
		var rule TownshipRule
		if err := rows.Scan(&rule.Township, &rule.Surcharge, &rule.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan township rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// UpsertTownshipRule inserts or replaces the surcharge for one township.
// The township name is the case-insensitive, trimmed key.
func (r *Repository) UpsertTownshipRule(ctx context.Context, township string, surcharge decimal.Decimal) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO township_rules (township, surcharge, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (township) DO UPDATE SET
			surcharge = EXCLUDED.surcharge,
			updated_at = NOW()`,
		strings.ToLower(strings.TrimSpace(township)), surcharge,
	)
	return err
}

// DeleteTownshipRule removes the surcharge for one township.
func (r *Repository) DeleteTownshipRule(ctx context.Context, township string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM township_rules WHERE township = $1`,
		strings.ToLower(strings.TrimSpace(township)),
	)
	return err
}

// ListDispatchRounds returns the dispatch rounds ordered by round index.
func (r *Repository) ListDispatchRounds(ctx context.Context) ([]DispatchRoundRow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT round_index, radius_meters, interval_ms
		FROM dispatch_rounds
		ORDER BY round_index`)
	if err != nil {
		return nil, fmt.Errorf("query dispatch rounds: %w", err)
	}
	defer rows.Close()

	var rounds []DispatchRoundRow
	for rows.Next() {
		var round DispatchRoundRow
		if err := rows.Scan(&round.RoundIndex, &round.RadiusMeters, &round.IntervalMs); err != nil {
			return nil, fmt.Errorf("scan dispatch round: %w", err)
		}
		rounds = append(rounds, round)
	}
	return rounds, rows.Err()
}

// ReplaceDispatchRounds atomically replaces the whole dispatch round set.
// Either all rows are written or none are.
func (r *Repository) ReplaceDispatchRounds(ctx context.Context, rounds []DispatchRoundRow) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin replace dispatch rounds: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM dispatch_rounds`); err != nil {
		return fmt.Errorf("clear dispatch rounds: %w", err)
	}
	for _, round := range rounds {
		_, err := tx.Exec(ctx, `
			INSERT INTO dispatch_rounds (round_index, radius_meters, interval_ms)
			VALUES ($1, $2, $3)`,
			round.RoundIndex, round.RadiusMeters, round.IntervalMs,
		)
		if err != nil {
			return fmt.Errorf("insert dispatch round %d: %w", round.RoundIndex, err)
		}
	}

	return tx.Commit(ctx)
}

func unmarshalRules(data []byte, dst interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
