package store

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"vinskraper/models"
)

// fakeStore applies patches with field-set semantics over an in-memory
// document map, mirroring the contract the pipeline relies on.
type fakeStore struct {
	mu      sync.Mutex
	docs    map[int]bson.M
	expired []bson.M

	// failWrites makes the next N BulkUpsert calls fail, simulating
	// storage write conflicts.
	failWrites int
	writeCalls int

	lastPipeline  []bson.M
	lastCount     bson.M
	aggregateDocs []bson.M
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[int]bson.M)}
}

func (f *fakeStore) Find(_ context.Context, filter bson.M) ([]bson.M, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	indexes := make([]int, 0, len(f.docs))
	for index := range f.docs {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)

	var out []bson.M
	for _, index := range indexes {
		doc := f.docs[index]
		if matches(doc, filter) {
			out = append(out, copyDoc(doc))
		}
	}
	return out, nil
}

func (f *fakeStore) Distinct(_ context.Context, field string, filter bson.M) ([]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	seen := make(map[interface{}]struct{})
	var values []interface{}
	for _, doc := range f.docs {
		if !matches(doc, filter) {
			continue
		}
		value, ok := doc[field]
		if !ok {
			continue
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		values = append(values, value)
	}
	return values, nil
}

func (f *fakeStore) Count(_ context.Context, filter bson.M) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastCount = filter
	var count int64
	for _, doc := range f.docs {
		if matches(doc, filter) {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) BulkUpsert(_ context.Context, ops []Upsert) (models.WriteSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.writeCalls++
	if f.failWrites > 0 {
		f.failWrites--
		return models.WriteSummary{}, errors.New("bulk write conflict")
	}

	var summary models.WriteSummary
	for _, op := range ops {
		doc, ok := f.docs[op.Index]
		if !ok {
			doc = bson.M{}
			f.docs[op.Index] = doc
			summary.Inserted++
		} else {
			summary.Matched++
		}
		for field, value := range op.Patch {
			doc[field] = value
		}
	}
	return summary, nil
}

func (f *fakeStore) Aggregate(_ context.Context, pipeline []bson.M) ([]bson.M, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPipeline = pipeline
	return f.aggregateDocs, nil
}

func (f *fakeStore) ArchiveExpired(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var moved int64
	for index, doc := range f.docs {
		if expired, _ := doc["utgått"].(bool); expired {
			f.expired = append(f.expired, doc)
			delete(f.docs, index)
			moved++
		}
	}
	return moved, nil
}

func (f *fakeStore) snapshot(index int) bson.M {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[index]
	if !ok {
		return nil
	}
	return copyDoc(doc)
}

func matches(doc, filter bson.M) bool {
	for field, want := range filter {
		if !reflect.DeepEqual(doc[field], want) {
			return false
		}
	}
	return true
}

func copyDoc(doc bson.M) bson.M {
	out := make(bson.M, len(doc))
	for field, value := range doc {
		out[field] = value
	}
	return out
}
