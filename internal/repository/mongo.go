package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/cll-genie-server/internal/domain"
)

// Collection names used when the configuration leaves them empty.
const (
	DefaultSamplesCollection = "samples"
	DefaultResultsCollection = "vquest_results"
)

// MongoRepository stores documents in two MongoDB collections. Documents
// created by earlier deployments use ObjectID keys; lookups accept both
// the hex form and plain string IDs.
type MongoRepository struct {
	client  *mongo.Client
	samples *mongo.Collection
	results *mongo.Collection
	log     *logrus.Logger
}

// NewMongoRepository connects to MongoDB and verifies the connection.
func NewMongoRepository(ctx context.Context, cfg domain.MongoConfig, logger *logrus.Logger) (*MongoRepository, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI).SetConnectTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	samples := cfg.SamplesCollection
	if samples == "" {
		samples = DefaultSamplesCollection
	}
	results := cfg.ResultsCollection
	if results == "" {
		results = DefaultResultsCollection
	}

	db := client.Database(cfg.Database)
	logger.WithFields(logrus.Fields{
		"database":           cfg.Database,
		"samples_collection": samples,
		"results_collection": results,
	}).Info("MongoDB connection established")

	return &MongoRepository{
		client:  client,
		samples: db.Collection(samples),
		results: db.Collection(results),
		log:     logger,
	}, nil
}

// idFilter matches a document by string ID or by the equivalent ObjectID.
func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{oid, id}}}
	}
	return bson.M{"_id": id}
}

// withoutID marshals v and drops its _id so a replacement keeps the stored key.
func withoutID(v interface{}) (bson.D, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc bson.D
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	out := doc[:0]
	for _, e := range doc {
		if e.Key != "_id" {
			out = append(out, e)
		}
	}
	return out, nil
}

// CreateSample inserts a new sample
func (r *MongoRepository) CreateSample(ctx context.Context, sample *domain.Sample) error {
	if err := requireID("sample", sample.ID); err != nil {
		return err
	}
	stampSample(sample, true)

	if _, err := r.samples.InsertOne(ctx, sample); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("sample %s: %w", sample.ID, domain.ErrDuplicate)
		}
		r.log.WithFields(logrus.Fields{
			"sample_id": sample.ID,
			"error":     err,
		}).Error("Failed to create sample")
		return fmt.Errorf("creating sample: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"sample_id": sample.ID,
		"name":      sample.Name,
	}).Info("Sample created successfully")
	return nil
}

// GetSample retrieves a sample by ID
func (r *MongoRepository) GetSample(ctx context.Context, id string) (*domain.Sample, error) {
	var sample domain.Sample
	if err := r.samples.FindOne(ctx, idFilter(id)).Decode(&sample); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("sample %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting sample: %w", err)
	}
	return &sample, nil
}

// ListSamples returns samples, newest first
func (r *MongoRepository) ListSamples(ctx context.Context, limit, offset int) ([]*domain.Sample, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "date_added", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(listLimit(limit)))

	cursor, err := r.samples.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing samples: %w", err)
	}
	var samples []*domain.Sample
	if err := cursor.All(ctx, &samples); err != nil {
		return nil, fmt.Errorf("decoding samples: %w", err)
	}
	return samples, nil
}

// UpdateSample replaces the stored sample document
func (r *MongoRepository) UpdateSample(ctx context.Context, sample *domain.Sample) error {
	stampSample(sample, false)
	doc, err := withoutID(sample)
	if err != nil {
		return fmt.Errorf("encoding sample %s: %w", sample.ID, err)
	}

	res, err := r.samples.ReplaceOne(ctx, idFilter(sample.ID), doc)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"sample_id": sample.ID,
			"error":     err,
		}).Error("Failed to update sample")
		return fmt.Errorf("updating sample: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("sample %s: %w", sample.ID, domain.ErrNotFound)
	}
	return nil
}

// InsertResults creates the results document for a sample
func (r *MongoRepository) InsertResults(ctx context.Context, doc *domain.ResultsDocument) error {
	if err := requireID("sample", doc.ID); err != nil {
		return err
	}
	if _, err := r.results.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("results for sample %s: %w", doc.ID, domain.ErrDuplicate)
		}
		return fmt.Errorf("inserting results: %w", err)
	}
	return nil
}

// GetResults retrieves the results document for a sample
func (r *MongoRepository) GetResults(ctx context.Context, sampleID string) (*domain.ResultsDocument, error) {
	var doc domain.ResultsDocument
	if err := r.results.FindOne(ctx, idFilter(sampleID)).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("results for sample %s: %w", sampleID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting results: %w", err)
	}
	if doc.Submissions == nil {
		doc.Submissions = map[string]*domain.Submission{}
	}
	return &doc, nil
}

// ReplaceResults overwrites an existing results document
func (r *MongoRepository) ReplaceResults(ctx context.Context, doc *domain.ResultsDocument) error {
	replacement, err := withoutID(doc)
	if err != nil {
		return fmt.Errorf("encoding results for sample %s: %w", doc.ID, err)
	}
	res, err := r.results.ReplaceOne(ctx, idFilter(doc.ID), replacement)
	if err != nil {
		return fmt.Errorf("replacing results: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("results for sample %s: %w", doc.ID, domain.ErrNotFound)
	}
	return nil
}

// DeleteResults removes the results document for a sample
func (r *MongoRepository) DeleteResults(ctx context.Context, sampleID string) error {
	res, err := r.results.DeleteOne(ctx, idFilter(sampleID))
	if err != nil {
		return fmt.Errorf("deleting results: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("results for sample %s: %w", sampleID, domain.ErrNotFound)
	}
	return nil
}

// Ping checks the connection
func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (r *MongoRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}
