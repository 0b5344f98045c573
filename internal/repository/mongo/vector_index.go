package mongo

import (
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/repository"
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultVectorCollectionName = "exercise_vectors"
	indexMetaCollectionName     = "exercise_index_meta"
	fingerprintDocumentID       = "fingerprint"
)

// vectorDocument is the stored form of one index entry.
type vectorDocument struct {
	ID            string    `bson:"_id"`
	Embedding     []float32 `bson:"embedding"`
	Category      string    `bson:"category"`
	Equipment     string    `bson:"equipment"`
	Difficulty    string    `bson:"difficulty"`
	TargetMuscles []string  `bson:"target_muscles"`
	Seq           int64     `bson:"seq"`
}

type metaDocument struct {
	ID        string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// mongoVectorIndex implements repository.VectorIndex and
// repository.FingerprintStore. Candidates are narrowed by the metadata filter
// in MongoDB and ranked by cosine distance in process.
type mongoVectorIndex struct {
	collection *mongo.Collection
	meta       *mongo.Collection
}

// NewMongoVectorIndex creates a vector index stored in the named collection.
func NewMongoVectorIndex(db *mongo.Database, collectionName string) repository.VectorIndex {
	if collectionName == "" {
		collectionName = defaultVectorCollectionName
	}
	return &mongoVectorIndex{
		collection: db.Collection(collectionName),
		meta:       db.Collection(indexMetaCollectionName),
	}
}

// Upsert writes entries keyed by ID. The seq field is only set on insert, so
// re-indexing an entry keeps its original tie-break position.
func (r *mongoVectorIndex) Upsert(ctx context.Context, entries ...repository.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(entries))
	for _, e := range entries {
		if e.ID == "" || len(e.Vector) == 0 {
			return errors.New("index entry ID and vector are required")
		}
		update := bson.M{
			"$set": bson.M{
				"embedding":      e.Vector,
				"category":       e.Metadata.Category,
				"equipment":      e.Metadata.Equipment,
				"difficulty":     e.Metadata.Difficulty,
				"target_muscles": e.Metadata.TargetMuscles,
			},
			"$setOnInsert": bson.M{"seq": int64(e.Ordinal)},
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": e.ID}).
			SetUpdate(update).
			SetUpsert(true))
	}

	_, err := r.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("upsert %d vectors: %w", len(entries), err)
	}
	return nil
}

func (r *mongoVectorIndex) Count(ctx context.Context) (int, error) {
	n, err := r.collection.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *mongoVectorIndex) Query(ctx context.Context, vector []float32, k int, filter domain.ExerciseFilter) ([]repository.IndexHit, error) {
	if k <= 0 {
		return []repository.IndexHit{}, nil
	}

	findOptions := options.Find().SetProjection(bson.M{"embedding": 1, "seq": 1})
	cursor, err := r.collection.Find(ctx, filterDocument(filter), findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []vectorDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	candidates := make([]repository.Candidate, 0, len(docs))
	for _, doc := range docs {
		candidates = append(candidates, repository.Candidate{
			ID:       doc.ID,
			Distance: repository.CosineDistance(vector, doc.Embedding),
			Seq:      doc.Seq,
		})
	}
	return repository.RankHits(candidates, k), nil
}

func (r *mongoVectorIndex) Reset(ctx context.Context) error {
	if _, err := r.collection.DeleteMany(ctx, bson.D{}); err != nil {
		return err
	}
	_, err := r.meta.DeleteOne(ctx, bson.M{"_id": fingerprintDocumentID})
	return err
}

func (r *mongoVectorIndex) Fingerprint(ctx context.Context) (string, error) {
	var doc metaDocument
	err := r.meta.FindOne(ctx, bson.M{"_id": fingerprintDocumentID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", nil
		}
		return "", err
	}
	return doc.Value, nil
}

func (r *mongoVectorIndex) SetFingerprint(ctx context.Context, fingerprint string) error {
	update := bson.M{"$set": bson.M{"value": fingerprint, "updated_at": time.Now().UTC()}}
	_, err := r.meta.UpdateOne(ctx, bson.M{"_id": fingerprintDocumentID}, update, options.Update().SetUpsert(true))
	return err
}

// filterDocument translates an ExerciseFilter into an equality match on
// every non-empty field.
func filterDocument(filter domain.ExerciseFilter) bson.M {
	doc := bson.M{}
	if filter.Category != "" {
		doc["category"] = filter.Category
	}
	if filter.Equipment != "" {
		doc["equipment"] = filter.Equipment
	}
	if filter.Difficulty != "" {
		doc["difficulty"] = filter.Difficulty
	}
	return doc
}

// EnsureVectorIndexes creates the metadata indexes used by filtered queries.
func EnsureVectorIndexes(ctx context.Context, db *mongo.Database, collectionName string) {
	if collectionName == "" {
		collectionName = defaultVectorCollectionName
	}
	collection := db.Collection(collectionName)
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "equipment", Value: 1}}},
		{Keys: bson.D{{Key: "difficulty", Value: 1}}},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Warnf("Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
