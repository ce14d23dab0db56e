package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/himanishpuri/MediaDNA/pkg/mediadna/cluster"
	"github.com/himanishpuri/MediaDNA/pkg/models"
)

const (
	DefaultMongoURI        = "mongodb://localhost:27017"
	DefaultMongoDatabase   = "image_database"
	DefaultMongoCollection = "images"
)

type mongoDoc struct {
	Path      string    `bson:"_id"`
	Tokens    []string  `bson:"tokens"`
	Metadata  bson.M    `bson:"metadata"`
	CreatedAt time.Time `bson:"createdAt"`
}

// Mongo is the document store backend. Each file is one document keyed by
// its path.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func OpenMongo(ctx context.Context, cfg Config) (*Mongo, error) {
	uri := cfg.Location
	if uri == "" {
		uri = DefaultMongoURI
	}
	dbName := cfg.Database
	if dbName == "" {
		dbName = DefaultMongoDatabase
	}
	collName := cfg.Collection
	if collName == "" {
		collName = DefaultMongoCollection
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(timeout).
		SetConnectTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to %s: %v", ErrUnavailable, uri, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: pinging %s: %v", ErrUnavailable, uri, err)
	}

	coll := client.Database(dbName).Collection(collName)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tokens", Value: 1}},
		Options: options.Index().SetName("tokens_1"),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("creating token index: %w", err)
	}

	return &Mongo{client: client, coll: coll}, nil
}

func (m *Mongo) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *Mongo) Contains(ctx context.Context, path string) (bool, error) {
	n, err := m.coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: path}}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("querying file: %w", err)
	}
	return n > 0, nil
}

func (m *Mongo) Insert(ctx context.Context, rec models.FileRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	doc := mongoDoc{
		Path:      rec.Path,
		Tokens:    models.TokenKeys(models.UniqueTokens(rec.Tokens)),
		Metadata:  bson.M(rec.Metadata),
		CreatedAt: time.Now().UTC(),
	}
	if doc.Metadata == nil {
		doc.Metadata = bson.M{}
	}
	if _, err := m.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, rec.Path)
		}
		return fmt.Errorf("inserting file: %w", err)
	}
	return nil
}

func (m *Mongo) Remove(ctx context.Context, path string) error {
	_, err := m.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: path}})
	return err
}

func (m *Mongo) Clear(ctx context.Context) error {
	_, err := m.coll.DeleteMany(ctx, bson.D{})
	return err
}

func (m *Mongo) Count(ctx context.Context) (int, error) {
	n, err := m.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("counting files: %w", err)
	}
	return int(n), nil
}

func (m *Mongo) All(ctx context.Context) ([]models.FileRecord, error) {
	return m.find(ctx, bson.D{})
}

func (m *Mongo) find(ctx context.Context, filter any) ([]models.FileRecord, error) {
	cur, err := m.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("querying files: %w", err)
	}
	defer cur.Close(ctx)

	var out []models.FileRecord
	for cur.Next(ctx) {
		var doc mongoDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding file: %w", err)
		}
		toks, err := models.ParseTokens(doc.Tokens)
		if err != nil {
			return nil, err
		}
		out = append(out, models.FileRecord{
			Path:     doc.Path,
			Tokens:   toks,
			Metadata: models.Metadata(doc.Metadata),
		})
	}
	return out, cur.Err()
}

type tokenGroup struct {
	Token string   `bson:"_id"`
	Paths []string `bson:"paths"`
}

func (m *Mongo) FindDuplicates(ctx context.Context, matchCaptureTime bool) ([]models.DuplicateCluster, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$unwind", Value: "$tokens"}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$tokens"},
			{Key: "paths", Value: bson.D{{Key: "$addToSet", Value: "$_id"}}},
		}}},
		{{Key: "$match", Value: bson.D{{Key: "paths.1", Value: bson.D{{Key: "$exists", Value: true}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	cur, err := m.coll.Aggregate(ctx, pipeline, options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return nil, fmt.Errorf("grouping tokens: %w", err)
	}
	var groups []tokenGroup
	if err := cur.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("decoding token groups: %w", err)
	}
	if len(groups) == 0 {
		return nil, nil
	}

	pathSet := make(map[string]struct{})
	for _, g := range groups {
		for _, p := range g.Paths {
			pathSet[p] = struct{}{}
		}
	}
	paths := make([]string, 0, len(pathSet))
	for p := range pathSet {
		paths = append(paths, p)
	}

	records := make(map[string]models.FileRecord, len(paths))
	for start := 0; start < len(paths); start += queryBatch {
		batch := paths[start:min(start+queryBatch, len(paths))]
		recs, err := m.find(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: batch}}}})
		if err != nil {
			return nil, err
		}
		for _, r := range recs {
			records[r.Path] = r
		}
	}

	clusters := make([]models.DuplicateCluster, 0, len(groups))
	for _, g := range groups {
		var items []models.FileRecord
		for _, p := range g.Paths {
			if rec, ok := records[p]; ok {
				items = append(items, rec)
			}
		}
		clusters = append(clusters, models.DuplicateCluster{Token: g.Token, Items: items})
	}
	return cluster.Finalize(clusters, matchCaptureTime), nil
}
