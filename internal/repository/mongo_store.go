package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/ids"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/models"
)

const mongoIDField = "_id"

// MongoStore keeps each collection in a MongoDB collection of the same name.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{client: client, db: client.Database(database)}
}

func (s *MongoStore) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

func (s *MongoStore) Insert(ctx context.Context, collection string, doc models.Document) (models.Document, error) {
	stored := body(doc).Clone()
	id := doc.ID()
	if id == "" {
		id = ids.New()
	}
	ts := now()
	stored[models.FieldCreatedAt] = ts
	stored[models.FieldUpdatedAt] = ts

	raw := toBSON(stored)
	raw[mongoIDField] = id
	if _, err := s.col(collection).InsertOne(ctx, raw); err != nil {
		return nil, wrapMongoError(err)
	}
	stored[models.FieldID] = id
	return stored, nil
}

func (s *MongoStore) FindByID(ctx context.Context, collection, id string) (models.Document, error) {
	return s.findOne(ctx, collection, bson.D{{Key: mongoIDField, Value: id}})
}

func (s *MongoStore) FindOne(ctx context.Context, collection string, match Match) (models.Document, error) {
	return s.findOne(ctx, collection, filterOf(match))
}

func (s *MongoStore) findOne(ctx context.Context, collection string, filter bson.D) (models.Document, error) {
	var raw bson.M
	if err := s.col(collection).FindOne(ctx, filter).Decode(&raw); err != nil {
		return nil, wrapMongoError(err)
	}
	return fromBSON(raw), nil
}

func (s *MongoStore) Find(ctx context.Context, collection string, opts FindOptions) ([]models.Document, error) {
	findOpts := options.Find()
	if opts.SortBy != "" {
		findOpts.SetSort(bson.D{{Key: opts.SortBy, Value: 1}, {Key: models.FieldCreatedAt, Value: 1}})
	} else {
		findOpts.SetSort(bson.D{{Key: models.FieldCreatedAt, Value: 1}})
	}

	cursor, err := s.col(collection).Find(ctx, filterOf(opts.Match), findOpts)
	if err != nil {
		return nil, wrapMongoError(err)
	}
	var raws []bson.M
	if err := cursor.All(ctx, &raws); err != nil {
		return nil, wrapMongoError(err)
	}

	out := make([]models.Document, 0, len(raws))
	for _, raw := range raws {
		out = append(out, fromBSON(raw))
	}
	return out, nil
}

func (s *MongoStore) Update(ctx context.Context, collection, id string, cond Match, set models.Document) (models.Document, error) {
	assign, unset := splitSet(set)

	setDoc := toBSON(assign)
	setDoc[models.FieldUpdatedAt] = now()
	update := bson.D{{Key: "$set", Value: setDoc}}
	if len(unset) > 0 {
		unsetDoc := bson.M{}
		for _, k := range unset {
			unsetDoc[k] = ""
		}
		update = append(update, bson.E{Key: "$unset", Value: unsetDoc})
	}

	filter := append(bson.D{{Key: mongoIDField, Value: id}}, filterOf(cond)...)
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var raw bson.M
	if err := s.col(collection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&raw); err != nil {
		return nil, wrapMongoError(err)
	}
	return fromBSON(raw), nil
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) (models.Document, error) {
	var raw bson.M
	err := s.col(collection).FindOneAndDelete(ctx, bson.D{{Key: mongoIDField, Value: id}}).Decode(&raw)
	if err != nil {
		return nil, wrapMongoError(err)
	}
	return fromBSON(raw), nil
}

func (s *MongoStore) Count(ctx context.Context, collection string) (int64, error) {
	n, err := s.col(collection).CountDocuments(ctx, bson.D{})
	return n, wrapMongoError(err)
}

func (s *MongoStore) EnsureIndex(ctx context.Context, collection string, idx Index) error {
	keys := bson.D{}
	for _, f := range idx.Fields {
		keys = append(keys, bson.E{Key: f, Value: 1})
	}
	opts := options.Index().SetName(indexName(collection, idx))
	if idx.Unique {
		// absent fields are not indexed, so optional unique keys may repeat as missing
		filter := bson.M{}
		for _, f := range idx.Fields {
			filter[f] = bson.M{"$exists": true}
		}
		opts.SetUnique(true).SetPartialFilterExpression(filter)
	}
	if _, err := s.col(collection).Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys, Options: opts}); err != nil {
		return fmt.Errorf("create index %s on %s: %w", indexName(collection, idx), collection, err)
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func wrapMongoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func filterOf(match Match) bson.D {
	keys := make([]string, 0, len(match))
	for k := range match {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	filter := bson.D{}
	for _, k := range keys {
		name := k
		if k == models.FieldID {
			name = mongoIDField
		}
		filter = append(filter, bson.E{Key: name, Value: match[k]})
	}
	return filter
}

func toBSON(doc models.Document) bson.M {
	out := bson.M{}
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func fromBSON(raw bson.M) models.Document {
	doc := make(models.Document, len(raw))
	for k, v := range raw {
		if k == mongoIDField {
			doc[models.FieldID] = fmt.Sprint(v)
			continue
		}
		doc[k] = normalizeBSON(v)
	}
	return doc
}

// normalizeBSON converts driver types into the plain values the rest of the
// application works with.
func normalizeBSON(v any) any {
	switch val := v.(type) {
	case bson.D:
		out := map[string]any{}
		for _, e := range val {
			out[e.Key] = normalizeBSON(e.Value)
		}
		return out
	case bson.M:
		out := map[string]any{}
		for k, e := range val {
			out[k] = normalizeBSON(e)
		}
		return out
	case map[string]any:
		out := map[string]any{}
		for k, e := range val {
			out[k] = normalizeBSON(e)
		}
		return out
	case bson.A:
		out := make([]any, len(val))
		for i := range val {
			out[i] = normalizeBSON(val[i])
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = normalizeBSON(val[i])
		}
		return out
	case bson.DateTime:
		return val.Time().UTC()
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	default:
		return v
	}
}

var _ Store = (*MongoStore)(nil)
