package store

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// fakeCollection is an in-memory collection understanding the equality and
// range filters and the $set/$inc/$unset updates the store issues.
type fakeCollection struct {
	t      *testing.T
	name   string
	docs   []bson.M
	failOn map[string]error
	calls  []string
}

func newFakeCollection(t *testing.T, name string) *fakeCollection {
	t.Helper()
	return &fakeCollection{t: t, name: name, failOn: make(map[string]error)}
}

func (f *fakeCollection) record(op string) error {
	f.calls = append(f.calls, op)
	return f.failOn[op]
}

func (f *fakeCollection) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	if err := f.record("InsertOne"); err != nil {
		return nil, err
	}

	doc := toDoc(f.t, document)
	f.docs = append(f.docs, doc)
	return &mongo.InsertOneResult{InsertedID: len(f.docs)}, nil
}

func (f *fakeCollection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult {
	if err := f.record("FindOne"); err != nil {
		return mongo.NewSingleResultFromDocument(bson.M{}, err, nil)
	}

	for _, doc := range f.docs {
		if matches(f.t, doc, filter) {
			return mongo.NewSingleResultFromDocument(doc, nil, nil)
		}
	}
	return mongo.NewSingleResultFromDocument(bson.M{}, mongo.ErrNoDocuments, nil)
}

func (f *fakeCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	if err := f.record("Find"); err != nil {
		return nil, err
	}

	var found []bson.M
	for _, doc := range f.docs {
		if matches(f.t, doc, filter) {
			found = append(found, doc)
		}
	}

	for _, opt := range opts {
		if opt == nil || opt.Sort == nil {
			continue
		}
		keys, ok := opt.Sort.(bson.D)
		if !ok || len(keys) == 0 {
			f.t.Fatalf("unexpected sort %v", opt.Sort)
		}
		key := keys[0].Key
		sort.SliceStable(found, func(i, j int) bool {
			c, _ := compareValues(found[i][key], found[j][key])
			return c < 0
		})
	}

	out := make([]interface{}, 0, len(found))
	for _, doc := range found {
		out = append(out, doc)
	}
	return mongo.NewCursorFromDocuments(out, nil, nil)
}

func (f *fakeCollection) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	if err := f.record("CountDocuments"); err != nil {
		return 0, err
	}

	var n int64
	for _, doc := range f.docs {
		if matches(f.t, doc, filter) {
			n++
		}
	}
	return n, nil
}

func (f *fakeCollection) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	if err := f.record("UpdateOne"); err != nil {
		return nil, err
	}

	for _, doc := range f.docs {
		if matches(f.t, doc, filter) {
			applyUpdate(f.t, doc, update)
			return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
		}
	}

	for _, opt := range opts {
		if opt != nil && opt.Upsert != nil && *opt.Upsert {
			f.docs = append(f.docs, f.upsert(filter, update))
			return &mongo.UpdateResult{UpsertedCount: 1}, nil
		}
	}
	return &mongo.UpdateResult{}, nil
}

func (f *fakeCollection) FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult {
	if err := f.record("FindOneAndUpdate"); err != nil {
		return mongo.NewSingleResultFromDocument(bson.M{}, err, nil)
	}

	for _, doc := range f.docs {
		if matches(f.t, doc, filter) {
			applyUpdate(f.t, doc, update)
			return mongo.NewSingleResultFromDocument(doc, nil, nil)
		}
	}

	for _, opt := range opts {
		if opt != nil && opt.Upsert != nil && *opt.Upsert {
			doc := f.upsert(filter, update)
			f.docs = append(f.docs, doc)
			return mongo.NewSingleResultFromDocument(doc, nil, nil)
		}
	}
	return mongo.NewSingleResultFromDocument(bson.M{}, mongo.ErrNoDocuments, nil)
}

func (f *fakeCollection) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	if err := f.record("DeleteOne"); err != nil {
		return nil, err
	}
	return &mongo.DeleteResult{DeletedCount: f.remove(filter, 1)}, nil
}

func (f *fakeCollection) DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	if err := f.record("DeleteMany"); err != nil {
		return nil, err
	}
	return &mongo.DeleteResult{DeletedCount: f.remove(filter, -1)}, nil
}

func (f *fakeCollection) remove(filter interface{}, limit int) int64 {
	var kept []bson.M
	var removed int64
	for _, doc := range f.docs {
		if (limit < 0 || removed < int64(limit)) && matches(f.t, doc, filter) {
			removed++
			continue
		}
		kept = append(kept, doc)
	}
	f.docs = kept
	return removed
}

func (f *fakeCollection) upsert(filter, update interface{}) bson.M {
	doc := bson.M{}
	for key, want := range asMap(f.t, filter) {
		if _, isOp := asOperators(want); !isOp {
			doc[key] = normalize(want)
		}
	}
	applyUpdate(f.t, doc, update)
	return doc
}

func (f *fakeCollection) find(field string, value interface{}) (bson.M, bool) {
	for _, doc := range f.docs {
		if c, ok := compareValues(doc[field], normalize(value)); ok && c == 0 {
			return doc, true
		}
	}
	return nil, false
}

func (f *fakeCollection) called(op string) int {
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

// fakeTx runs the callback inline; it does not roll back on failure.
type fakeTx struct {
	calls int
	err   error
}

func (f *fakeTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return fn(ctx)
}

func toDoc(t *testing.T, document interface{}) bson.M {
	t.Helper()

	raw, err := bson.Marshal(document)
	if err != nil {
		t.Fatalf("marshal document: %v", err)
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal document: %v", err)
	}
	return doc
}

func asMap(t *testing.T, v interface{}) bson.M {
	t.Helper()

	switch m := v.(type) {
	case bson.M:
		return m
	case bson.D:
		out := bson.M{}
		for _, e := range m {
			out[e.Key] = e.Value
		}
		return out
	default:
		t.Fatalf("unexpected document type %T", v)
		return nil
	}
}

func asOperators(v interface{}) (bson.M, bool) {
	m, ok := v.(bson.M)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for key := range m {
		if !strings.HasPrefix(key, "$") {
			return nil, false
		}
	}
	return m, true
}

func matches(t *testing.T, doc bson.M, filter interface{}) bool {
	t.Helper()

	for key, want := range asMap(t, filter) {
		got, present := doc[key]
		if ops, isOp := asOperators(want); isOp {
			if !present {
				return false
			}
			for op, operand := range ops {
				if op == "$in" {
					if !containsValue(got, operand) {
						return false
					}
					continue
				}
				c, ok := compareValues(got, normalize(operand))
				if !ok {
					return false
				}
				switch op {
				case "$lt":
					ok = c < 0
				case "$lte":
					ok = c <= 0
				case "$gt":
					ok = c > 0
				case "$gte":
					ok = c >= 0
				default:
					t.Fatalf("unsupported operator %s", op)
				}
				if !ok {
					return false
				}
			}
			continue
		}

		if !present {
			return false
		}
		if c, ok := compareValues(got, normalize(want)); !ok || c != 0 {
			return false
		}
	}
	return true
}

func containsValue(got, list interface{}) bool {
	values := reflect.ValueOf(list)
	if values.Kind() != reflect.Slice {
		return false
	}
	for i := 0; i < values.Len(); i++ {
		if c, ok := compareValues(got, normalize(values.Index(i).Interface())); ok && c == 0 {
			return true
		}
	}
	return false
}

func applyUpdate(t *testing.T, doc bson.M, update interface{}) {
	t.Helper()

	for op, fields := range asMap(t, update) {
		for key, value := range asMap(t, fields) {
			switch op {
			case "$set":
				doc[key] = normalize(value)
			case "$inc":
				current, _ := doc[key].(int64)
				delta, _ := normalize(value).(int64)
				doc[key] = current + delta
			case "$unset":
				delete(doc, key)
			default:
				t.Fatalf("unsupported update operator %s", op)
			}
		}
	}
}

// normalize maps Go values onto the types bson.Unmarshal produces.
func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case time.Time:
		return primitive.NewDateTimeFromTime(x)
	case int:
		return int64(x)
	case int32:
		return int64(x)
	default:
		return v
	}
}

func compareValues(a, b interface{}) (int, bool) {
	switch x := a.(type) {
	case primitive.DateTime:
		y, ok := b.(primitive.DateTime)
		if !ok {
			return 0, false
		}
		return compareInt(int64(x), int64(y)), true
	case int64:
		y, ok := b.(int64)
		if !ok {
			return 0, false
		}
		return compareInt(x, y), true
	case int32:
		return compareValues(int64(x), b)
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case bool:
		y, ok := b.(bool)
		if !ok || x != y {
			return 1, ok
		}
		return 0, true
	default:
		return 0, false
	}
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (f *fakeCollection) String() string {
	return fmt.Sprintf("%s%v", f.name, f.docs)
}
