package store

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"

	"vinskraper/models"
)

// deriveBatchSize bounds one bulk write during a derivation pass.
const deriveBatchSize = 500

// Deriver recomputes the derived price metrics (prisendring, literpris,
// alkoholpris) from each product's accumulated price series. The
// computation happens here, in application code, and is written back as a
// plain field-set update touching only the derived fields.
type Deriver struct {
	store Store
}

// NewDeriver builds a deriver over the given store.
func NewDeriver(store Store) *Deriver {
	return &Deriver{store: store}
}

// DeriveAll recomputes derived fields for every stored product. The pass
// is idempotent: without new price observations a second run writes
// identical values.
func (d *Deriver) DeriveAll(ctx context.Context) (models.WriteSummary, error) {
	return d.Derive(ctx, bson.M{})
}

// Derive recomputes derived fields for the products matching filter.
func (d *Deriver) Derive(ctx context.Context, filter bson.M) (models.WriteSummary, error) {
	docs, err := d.store.Find(ctx, filter)
	if err != nil {
		return models.WriteSummary{}, fmt.Errorf("derive: load products: %w", err)
	}

	var total models.WriteSummary
	ops := make([]Upsert, 0, deriveBatchSize)
	flush := func() error {
		if len(ops) == 0 {
			return nil
		}
		summary, err := d.store.BulkUpsert(ctx, ops)
		if err != nil {
			return fmt.Errorf("derive: write batch: %w", err)
		}
		total.Add(summary)
		ops = ops[:0]
		return nil
	}

	for _, doc := range docs {
		index, ok := numeric(doc["index"])
		if !ok {
			slog.Warn("document without numeric index, skipping derivation")
			continue
		}
		ops = append(ops, Upsert{Index: int(index), Patch: Derived(doc)})
		if len(ops) >= deriveBatchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}

	return total, nil
}

// Derived computes the derived-field patch for one stored document. It is
// a pure function of the document's price series, volume, and alcohol
// percentage; the patch never touches the series or descriptive fields.
func Derived(doc bson.M) bson.M {
	series := seriesOf(doc)

	patch := bson.M{
		"prisendring": priceChange(series),
		"literpris":   nil,
		"alkoholpris": nil,
	}

	latest, _, ok := series.Latest()
	volume, hasVolume := numeric(doc["volum"])
	if ok && latest > 0 && hasVolume && volume > 0 {
		liter := 100 * latest / volume
		patch["literpris"] = liter

		if alcohol, hasAlcohol := numeric(doc["alkohol"]); hasAlcohol && alcohol > 0 {
			patch["alkoholpris"] = liter / alcohol
		}
	}

	return patch
}

// priceChange returns the percentage change between the two most recent
// observations. Fewer than two observations, or a zero/null value in
// either, yields 0: an unknown price shows no discount.
func priceChange(series models.PriceSeries) float64 {
	latest, previous, ok := series.Latest()
	if !ok || previous == nil {
		return 0
	}
	if latest == 0 || *previous == 0 {
		return 0
	}
	return (latest - *previous) / *previous * 100
}

// seriesOf collects the month-keyed price fields of a stored document.
// Null observations are kept as zeros so the discount guards treat them
// as unknown prices.
func seriesOf(doc bson.M) models.PriceSeries {
	series := models.PriceSeries{}
	for field, value := range doc {
		month, ok := models.ParsePriceKey(field)
		if !ok {
			continue
		}
		price, ok := numeric(value)
		if !ok {
			price = 0
		}
		series[month] = price
	}
	return series
}

func numeric(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
