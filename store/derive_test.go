package store

import (
	"context"
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestDerivedPriceChange(t *testing.T) {
	tests := []struct {
		name string
		doc  bson.M
		want float64
	}{
		{
			name: "drop from 100 to 80",
			doc:  bson.M{"pris 2024-04-01": 100.0, "pris 2024-05-01": 80.0},
			want: -20.0,
		},
		{
			name: "rise from 80 to 100",
			doc:  bson.M{"pris 2024-04-01": 80.0, "pris 2024-05-01": 100.0},
			want: 25.0,
		},
		{
			name: "earlier price zero",
			doc:  bson.M{"pris 2024-04-01": 0.0, "pris 2024-05-01": 80.0},
			want: 0,
		},
		{
			name: "earlier price null",
			doc:  bson.M{"pris 2024-04-01": nil, "pris 2024-05-01": 80.0},
			want: 0,
		},
		{
			name: "latest price zero",
			doc:  bson.M{"pris 2024-04-01": 100.0, "pris 2024-05-01": 0.0},
			want: 0,
		},
		{
			name: "single observation",
			doc:  bson.M{"pris 2024-05-01": 80.0},
			want: 0,
		},
		{
			name: "no observations",
			doc:  bson.M{"navn": "A"},
			want: 0,
		},
		{
			name: "uses two most recent of many",
			doc: bson.M{
				"pris 2024-01-01": 50.0,
				"pris 2024-04-01": 100.0,
				"pris 2024-05-01": 90.0,
			},
			want: -10.0,
		},
		{
			name: "integer stored values",
			doc:  bson.M{"pris 2024-04-01": int32(100), "pris 2024-05-01": int64(80)},
			want: -20.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patch := Derived(tt.doc)
			if got := patch["prisendring"]; got != tt.want {
				t.Fatalf("prisendring = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDerivedPerUnitMetrics(t *testing.T) {
	t.Run("valid volume and alcohol", func(t *testing.T) {
		patch := Derived(bson.M{
			"pris 2024-05-01": 200.0,
			"volum":           50.0,
			"alkohol":         40.0,
		})
		if got := patch["literpris"]; got != 400.0 {
			t.Fatalf("literpris = %v, want 400", got)
		}
		if got := patch["alkoholpris"]; got != 10.0 {
			t.Fatalf("alkoholpris = %v, want 10", got)
		}
	})

	t.Run("zero volume nulls literpris", func(t *testing.T) {
		patch := Derived(bson.M{"pris 2024-05-01": 200.0, "volum": 0.0, "alkohol": 40.0})
		if patch["literpris"] != nil {
			t.Fatalf("literpris = %v, want null", patch["literpris"])
		}
		if patch["alkoholpris"] != nil {
			t.Fatalf("alkoholpris = %v, want null when literpris is null", patch["alkoholpris"])
		}
	})

	t.Run("zero alcohol nulls alkoholpris only", func(t *testing.T) {
		patch := Derived(bson.M{"pris 2024-05-01": 200.0, "volum": 50.0, "alkohol": 0.0})
		if patch["literpris"] != 400.0 {
			t.Fatalf("literpris = %v, want 400", patch["literpris"])
		}
		if patch["alkoholpris"] != nil {
			t.Fatalf("alkoholpris = %v, want null", patch["alkoholpris"])
		}
	})

	t.Run("zero price nulls both", func(t *testing.T) {
		patch := Derived(bson.M{"pris 2024-05-01": 0.0, "volum": 50.0, "alkohol": 40.0})
		if patch["literpris"] != nil || patch["alkoholpris"] != nil {
			t.Fatalf("patch = %v, want null per-unit metrics", patch)
		}
	})
}

func TestDerivedIsPureOfDerivedInputs(t *testing.T) {
	doc := bson.M{
		"pris 2024-04-01": 100.0,
		"pris 2024-05-01": 80.0,
		"volum":           75.0,
		"alkohol":         13.0,
		// Stale derived values must not influence recomputation.
		"prisendring": 99.0,
		"literpris":   1.0,
		"alkoholpris": 1.0,
	}
	patch := Derived(doc)
	if patch["prisendring"] != -20.0 {
		t.Fatalf("prisendring = %v, want -20", patch["prisendring"])
	}
	if patch["literpris"] == 1.0 || patch["alkoholpris"] == 1.0 {
		t.Fatalf("stale derived values leaked into the patch: %v", patch)
	}
}

func TestDeriveAllWritesOnlyDerivedFields(t *testing.T) {
	fake := newFakeStore()
	fake.docs[1] = bson.M{
		"index":           1,
		"navn":            "A",
		"volum":           75.0,
		"alkohol":         13.0,
		"pris 2024-04-01": 100.0,
		"pris 2024-05-01": 80.0,
	}

	deriver := NewDeriver(fake)
	summary, err := deriver.DeriveAll(context.Background())
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if summary.Matched != 1 {
		t.Fatalf("summary = %+v, want 1 matched", summary)
	}

	doc := fake.snapshot(1)
	if doc["prisendring"] != -20.0 {
		t.Fatalf("prisendring = %v, want -20", doc["prisendring"])
	}
	if doc["navn"] != "A" || doc["pris 2024-04-01"] != 100.0 {
		t.Fatalf("derivation must not touch series or descriptive fields: %v", doc)
	}
}

func TestDeriveAllIsIdempotent(t *testing.T) {
	fake := newFakeStore()
	fake.docs[1] = bson.M{
		"index":           1,
		"volum":           75.0,
		"alkohol":         13.0,
		"pris 2024-04-01": 100.0,
		"pris 2024-05-01": 80.0,
	}

	deriver := NewDeriver(fake)
	if _, err := deriver.DeriveAll(context.Background()); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	first := fake.snapshot(1)

	if _, err := deriver.DeriveAll(context.Background()); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	second := fake.snapshot(1)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("derivation must be idempotent:\nfirst:  %v\nsecond: %v", first, second)
	}
}

func TestDeriveAllSkipsDocsWithoutIndex(t *testing.T) {
	fake := newFakeStore()
	fake.docs[1] = bson.M{"index": 1, "pris 2024-05-01": 80.0}
	fake.docs[2] = bson.M{"navn": "no index"}

	deriver := NewDeriver(fake)
	summary, err := deriver.DeriveAll(context.Background())
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if summary.Matched != 1 {
		t.Fatalf("summary = %+v, want only the indexed doc derived", summary)
	}
}
