package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/mpsim/internal/convert"
	"github.com/example/mpsim/internal/unit"
)

// DefaultTTL is how long a memoized conversion result stays valid. Ambient
// state changes every year, so a short TTL is enough to deduplicate work
// across trials within the same year without serving stale answers across
// years.
const DefaultTTL = 10 * time.Minute

// stateSnapshot captures a convert.State's seven decimal getters into a
// plain, JSON-marshalable struct so two calls with numerically identical
// ambient state hash to the same cache key regardless of which concrete
// State implementation produced them.
type stateSnapshot struct {
	Population          decimal.Decimal
	Volume              decimal.Decimal
	GasConsumption      decimal.Decimal
	EnergyConsumption   decimal.Decimal
	AmortizedUnitVolume decimal.Decimal
	YearsElapsed        decimal.Decimal
	PopulationChange    decimal.Decimal
}

func snapshotState(s convert.State) stateSnapshot {
	return stateSnapshot{
		Population:          s.Population(),
		Volume:              s.Volume(),
		GasConsumption:      s.GasConsumption(),
		EnergyConsumption:   s.EnergyConsumption(),
		AmortizedUnitVolume: s.AmortizedUnitVolume(),
		YearsElapsed:        s.YearsElapsed(),
		PopulationChange:    s.PopulationChange(),
	}
}

type conversionKey struct {
	Value     unit.Value
	DestUnit  string
	State     stateSnapshot
	Intensity convert.Intensities
}

func (k conversionKey) cacheKey() string {
	b, err := json.Marshal(k)
	if err != nil {
		// Keys that fail to marshal simply never hit the cache; the
		// conversion still runs, just uncached.
		return ""
	}
	sum := sha256.Sum256(b)
	return "mpsim:convert:" + hex.EncodeToString(sum[:])
}

// MemoizingConverter wraps a convert.Converter with a Cache, so repeating a
// conversion with identical (value, destination unit, ambient state,
// intensities) across trials reuses the first trial's answer. A nil Cache
// or a cache miss/error always falls through to the real conversion.
type MemoizingConverter struct {
	Converter *convert.Converter
	Cache     Cache
	TTL       time.Duration
}

// NewMemoizingConverter wraps converter with cache. A nil cache makes
// Convert behave identically to calling converter.Convert directly.
func NewMemoizingConverter(converter *convert.Converter, cache Cache) *MemoizingConverter {
	return &MemoizingConverter{Converter: converter, Cache: cache, TTL: DefaultTTL}
}

// Convert returns the cached result for this exact (value, destUnit,
// state, intensities) combination if one exists, otherwise computes it via
// the wrapped Converter and stores the result before returning.
func (m *MemoizingConverter) Convert(ctx context.Context, v unit.Value, destUnit string, state convert.State, it convert.Intensities) (unit.Value, error) {
	if m.Cache == nil {
		return m.Converter.Convert(v, destUnit, state, it)
	}

	key := conversionKey{Value: v, DestUnit: destUnit, State: snapshotState(state), Intensity: it}.cacheKey()
	if key != "" {
		if cached, hit, err := m.Cache.Get(ctx, key); err == nil && hit {
			var result unit.Value
			if err := json.Unmarshal([]byte(cached), &result); err == nil {
				return result, nil
			}
		}
	}

	result, err := m.Converter.Convert(v, destUnit, state, it)
	if err != nil {
		return result, err
	}

	if key != "" {
		if encoded, err := json.Marshal(result); err == nil {
			_ = m.Cache.Set(ctx, key, string(encoded), m.TTL)
		}
	}
	return result, nil
}
