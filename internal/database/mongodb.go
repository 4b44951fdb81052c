package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"tca/internal/models"
)

// MongoDB wraps the MongoDB client and database
type MongoDB struct {
	client   *mongo.Client
	database *mongo.Database
	dbName   string
}

// NewMongoDB creates a new MongoDB connection with connection pooling.
// Construction fails fast on a missing URI or unreachable server; callers
// never discover a misconfigured backend mid-operation.
func NewMongoDB(uri string) (*MongoDB, error) {
	if uri == "" {
		return nil, fmt.Errorf("MongoDB URI is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(30 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify connection
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dbName := extractDBName(uri)
	if dbName == "" {
		dbName = "gptr_db"
	}

	db := &MongoDB{
		client:   client,
		database: client.Database(dbName),
		dbName:   dbName,
	}

	log.Printf("✅ Connected to MongoDB database: %s", dbName)

	return db, nil
}

// extractDBName extracts the database name from MongoDB URI
func extractDBName(uri string) string {
	// mongodb://localhost:27017/gptr_db?authSource=admin -> gptr_db
	lastSlash := -1
	questionMark := -1
	for i, c := range uri {
		if c == '/' {
			lastSlash = i
		}
		if c == '?' && questionMark == -1 {
			questionMark = i
		}
	}
	if lastSlash != -1 {
		start := lastSlash + 1
		end := len(uri)
		if questionMark != -1 && questionMark > lastSlash {
			end = questionMark
		}
		if start < end {
			return uri[start:end]
		}
	}
	return "gptr_db"
}

// Initialize creates indexes for all collections
func (m *MongoDB) Initialize(ctx context.Context) error {
	log.Println("📦 Initializing MongoDB indexes...")

	unique := func(field string) []mongo.IndexModel {
		return []mongo.IndexModel{
			{Keys: bson.D{{Key: field, Value: 1}}, Options: options.Index().SetUnique(true)},
		}
	}

	// One logical document per user/session key.
	for _, collection := range []string{CollectionUsers, CollectionProfile, CollectionInstructions, CollectionResearchGoals, CollectionChats} {
		if err := m.createIndexes(ctx, collection, unique(KeyField(collection))); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", collection, err)
		}
	}

	// Legacy todos: many documents per user, keyed by synthetic todo_id.
	if err := m.createIndexes(ctx, CollectionTodos, []mongo.IndexModel{
		{Keys: bson.D{{Key: "todo_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create todos indexes: %w", err)
	}

	log.Println("✅ MongoDB indexes initialized successfully")
	return nil
}

// createIndexes creates indexes for a collection
func (m *MongoDB) createIndexes(ctx context.Context, collectionName string, indexes []mongo.IndexModel) error {
	collection := m.database.Collection(collectionName)
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// Collection returns a collection handle
func (m *MongoDB) Collection(name string) *mongo.Collection {
	return m.database.Collection(name)
}

// Client returns the underlying MongoDB client
func (m *MongoDB) Client() *mongo.Client {
	return m.client
}

// Close closes the MongoDB connection
func (m *MongoDB) Close(ctx context.Context) error {
	log.Println("🔌 Closing MongoDB connection...")
	return m.client.Disconnect(ctx)
}

// Ping checks if the database connection is alive
func (m *MongoDB) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// MongoStore implements DocumentStore on top of the MongoDB wrapper.
type MongoStore struct {
	db *MongoDB
}

// NewMongoStore wraps an established connection as a DocumentStore.
func NewMongoStore(db *MongoDB) *MongoStore {
	return &MongoStore{db: db}
}

// GetDocument returns the document for key, nil when absent.
func (s *MongoStore) GetDocument(ctx context.Context, collection, key string) (models.Document, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{KeyField(collection): key}).Decode(&raw)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find %s/%s: %v", ErrUnavailable, collection, key, err)
	}
	return stripInternal(raw), nil
}

// UpsertDocument applies patch as an atomic $set on the key filter.
// created_at only ever lands through $setOnInsert, so the first write wins
// and later patches can't overwrite it.
func (s *MongoStore) UpsertDocument(ctx context.Context, collection, key string, patch models.Document) error {
	set := bson.M{}
	onInsert := bson.M{"created_at": models.FormatTime(time.Now())}
	for k, v := range patch {
		if k == "created_at" {
			onInsert[k] = v
			continue
		}
		set[k] = v
	}
	update := bson.M{"$setOnInsert": onInsert}
	if len(set) > 0 {
		update["$set"] = set
	}
	_, err := s.db.Collection(collection).UpdateOne(
		ctx,
		bson.M{KeyField(collection): key},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("%w: upsert %s/%s: %v", ErrUnavailable, collection, key, err)
	}
	return nil
}

// DeleteDocument removes the document for key.
func (s *MongoStore) DeleteDocument(ctx context.Context, collection, key string) error {
	_, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{KeyField(collection): key})
	if err != nil {
		return fmt.Errorf("%w: delete %s/%s: %v", ErrUnavailable, collection, key, err)
	}
	return nil
}

// ListDocuments returns every document whose user_id field matches key.
func (s *MongoStore) ListDocuments(ctx context.Context, collection, key string) ([]models.Document, error) {
	cursor, err := s.db.Collection(collection).Find(ctx, bson.M{"user_id": key})
	if err != nil {
		return nil, fmt.Errorf("%w: list %s/%s: %v", ErrUnavailable, collection, key, err)
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: decode %s document: %v", ErrUnavailable, collection, err)
		}
		docs = append(docs, stripInternal(raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%w: list %s/%s: %v", ErrUnavailable, collection, key, err)
	}
	return docs, nil
}

// stripInternal drops the backend's _id and converts bson container types to
// the plain JSON-compatible shapes the rest of the system deals in.
func stripInternal(raw bson.M) models.Document {
	doc := models.Document{}
	for k, v := range raw {
		if k == "_id" {
			continue
		}
		doc[k] = normalizeValue(v)
	}
	return doc
}

func normalizeValue(v any) any {
	switch vv := v.(type) {
	case bson.M:
		m := make(map[string]any, len(vv))
		for k, item := range vv {
			m[k] = normalizeValue(item)
		}
		return m
	case bson.D:
		m := make(map[string]any, len(vv))
		for _, e := range vv {
			m[e.Key] = normalizeValue(e.Value)
		}
		return m
	case bson.A:
		out := make([]any, len(vv))
		for i, item := range vv {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}
