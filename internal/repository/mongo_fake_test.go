package repository

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// memCollection is an in-memory collection that understands the
// equality filters, single-key ascending sorts and unique keys used by
// the mongo repositories.
type memCollection struct {
	mu     sync.Mutex
	unique []string
	docs   []bson.Raw
}

var _ collection = (*memCollection)(nil)

func newMemCollection(unique ...string) *memCollection {
	return &memCollection{unique: append([]string{"_id"}, unique...)}
}

func duplicateKey() error {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key error"}}}
}

func matches(doc bson.Raw, filter any) bool {
	d, _ := filter.(bson.D)
	for _, e := range d {
		v, err := doc.LookupErr(e.Key)
		if err != nil {
			return false
		}
		s, ok := v.StringValueOK()
		if !ok || s != e.Value {
			return false
		}
	}
	return true
}

// conflicts reports whether doc shares a unique key with any stored
// document other than the one at skip.
func (c *memCollection) conflicts(doc bson.Raw, skip int) bool {
	for i, other := range c.docs {
		if i == skip {
			continue
		}
		for _, key := range c.unique {
			if doc.Lookup(key).Equal(other.Lookup(key)) {
				return true
			}
		}
	}
	return false
}

func (c *memCollection) InsertOne(_ context.Context, document any, _ ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error) {
	raw, err := bson.Marshal(document)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conflicts(raw, -1) {
		return nil, duplicateKey()
	}
	c.docs = append(c.docs, raw)
	return &mongo.InsertOneResult{InsertedID: bson.Raw(raw).Lookup("_id")}, nil
}

func (c *memCollection) FindOne(_ context.Context, filter any, _ ...options.Lister[options.FindOneOptions]) *mongo.SingleResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, doc := range c.docs {
		if matches(doc, filter) {
			return mongo.NewSingleResultFromDocument(doc, nil, nil)
		}
	}
	return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
}

func (c *memCollection) Find(_ context.Context, filter any, opts ...options.Lister[options.FindOptions]) (*mongo.Cursor, error) {
	var args options.FindOptions
	for _, o := range opts {
		for _, set := range o.List() {
			if err := set(&args); err != nil {
				return nil, err
			}
		}
	}

	c.mu.Lock()
	var found []bson.Raw
	for _, doc := range c.docs {
		if matches(doc, filter) {
			found = append(found, doc)
		}
	}
	c.mu.Unlock()

	if s, ok := args.Sort.(bson.D); ok && len(s) == 1 {
		key := s[0].Key
		sort.SliceStable(found, func(i, j int) bool {
			return found[i].Lookup(key).Time().Before(found[j].Lookup(key).Time())
		})
	}
	docs := make([]any, len(found))
	for i, doc := range found {
		docs[i] = doc
	}
	return mongo.NewCursorFromDocuments(docs, nil, nil)
}

func (c *memCollection) ReplaceOne(_ context.Context, filter, replacement any, _ ...options.Lister[options.ReplaceOptions]) (*mongo.UpdateResult, error) {
	raw, err := bson.Marshal(replacement)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, doc := range c.docs {
		if !matches(doc, filter) {
			continue
		}
		if c.conflicts(raw, i) {
			return nil, duplicateKey()
		}
		c.docs[i] = raw
		return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
	}
	return &mongo.UpdateResult{}, nil
}

func (c *memCollection) delete(filter any, limit int) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	kept := c.docs[:0]
	for _, doc := range c.docs {
		if (limit == 0 || n < int64(limit)) && matches(doc, filter) {
			n++
			continue
		}
		kept = append(kept, doc)
	}
	c.docs = kept
	return n
}

func (c *memCollection) DeleteOne(_ context.Context, filter any, _ ...options.Lister[options.DeleteOneOptions]) (*mongo.DeleteResult, error) {
	return &mongo.DeleteResult{DeletedCount: c.delete(filter, 1)}, nil
}

func (c *memCollection) DeleteMany(_ context.Context, filter any, _ ...options.Lister[options.DeleteManyOptions]) (*mongo.DeleteResult, error) {
	return &mongo.DeleteResult{DeletedCount: c.delete(filter, 0)}, nil
}
