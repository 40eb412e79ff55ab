package jobs

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yourusername/contract-forge/internal/extract"
)

const contractsCollection = "contracts"

// MongoStore はジョブを MongoDB の contracts コレクションに保存します。ID は ObjectID の16進表記です。
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

type mongoContract struct {
	ID              primitive.ObjectID     `bson:"_id"`
	Filename        string                 `bson:"filename"`
	Status          Status                 `bson:"status"`
	Progress        int                    `bson:"progress"`
	ExtractedData   *extract.ExtractedData `bson:"extracted_data,omitempty"`
	ConfidenceScore *int                   `bson:"confidence_score,omitempty"`
	UploadTime      time.Time              `bson:"upload_time"`
	UpdatedAt       time.Time              `bson:"updated_at"`
}

func (c *mongoContract) toRecord() *Record {
	return &Record{
		ID:              c.ID.Hex(),
		Filename:        c.Filename,
		Status:          c.Status,
		Progress:        c.Progress,
		ExtractedData:   c.ExtractedData,
		ConfidenceScore: c.ConfidenceScore,
		CreatedAt:       c.UploadTime.UTC(),
		UpdatedAt:       c.UpdatedAt.UTC(),
	}
}

// NewMongoStore は MongoDB に接続し、滞留検知用のインデックスを作成します。
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, unavailable("connect mongo", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, unavailable("ping mongo", err)
	}

	store := NewMongoStoreFromClient(client, database)
	_, err = store.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, unavailable("create mongo index", err)
	}
	return store, nil
}

// NewMongoStoreFromClient は接続済みのクライアントから MongoStore を作成します。
func NewMongoStoreFromClient(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(contractsCollection),
		now:    time.Now,
	}
}

// Create は pending のジョブを作成します。
func (s *MongoStore) Create(ctx context.Context, filename string) (string, error) {
	now := s.now().UTC()
	doc := &mongoContract{
		ID:         primitive.NewObjectID(),
		Filename:   filename,
		Status:     StatusPending,
		Progress:   0,
		UploadTime: now,
		UpdatedAt:  now,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return "", unavailable("insert contract", err)
	}
	return doc.ID.Hex(), nil
}

// UpdateProgress は status と progress のみを $set します。
// 後退する更新はフィルタに一致しないため書き込まれません。
func (s *MongoStore) UpdateProgress(ctx context.Context, id string, status Status, progress int) error {
	progress, err := normalizeUpdate(status, progress)
	if err != nil {
		return err
	}
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}
	res, err := s.coll.UpdateOne(ctx,
		transitionFilter(oid, status, progress),
		bson.M{"$set": bson.M{
			"status":     status,
			"progress":   progress,
			"updated_at": s.now().UTC(),
		}},
	)
	if err != nil {
		return unavailable("update contract progress", err)
	}
	if res.MatchedCount == 0 {
		return s.missOrConflict(ctx, oid)
	}
	return nil
}

// Complete は状態・進捗・抽出結果・スコアを 1 ドキュメントへの単一の更新で書き込みます。
func (s *MongoStore) Complete(ctx context.Context, id string, data *extract.ExtractedData, score int) error {
	if data == nil {
		return ErrInvalidInput
	}
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}
	res, err := s.coll.UpdateOne(ctx,
		transitionFilter(oid, StatusCompleted, 100),
		bson.M{"$set": bson.M{
			"status":           StatusCompleted,
			"progress":         100,
			"extracted_data":   data,
			"confidence_score": score,
			"updated_at":       s.now().UTC(),
		}},
	)
	if err != nil {
		return unavailable("complete contract", err)
	}
	if res.MatchedCount == 0 {
		return s.missOrConflict(ctx, oid)
	}
	return nil
}

// Get はジョブ全体を取得します。
func (s *MongoStore) Get(ctx context.Context, id string) (*Record, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	var doc mongoContract
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, unavailable("find contract", err)
	}
	return doc.toRecord(), nil
}

// GetStatus は status と progress だけを射影して取得します。
func (s *MongoStore) GetStatus(ctx context.Context, id string) (*StatusView, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Status   Status `bson:"status"`
		Progress int    `bson:"progress"`
	}
	opts := options.FindOne().SetProjection(bson.M{"status": 1, "progress": 1})
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, unavailable("find contract status", err)
	}
	return &StatusView{ID: oid.Hex(), Status: doc.Status, Progress: doc.Progress}, nil
}

// ListStale は updated_at が before より古い未完了ジョブを古い順に返します。
func (s *MongoStore) ListStale(ctx context.Context, before time.Time, limit int) ([]*Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.coll.Find(ctx, bson.M{
		"status":     bson.M{"$ne": StatusCompleted},
		"updated_at": bson.M{"$lt": before.UTC()},
	}, opts)
	if err != nil {
		return nil, unavailable("find stale contracts", err)
	}
	defer cur.Close(ctx)

	var records []*Record
	for cur.Next(ctx) {
		var doc mongoContract
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		records = append(records, doc.toRecord())
	}
	if err := cur.Err(); err != nil {
		return nil, unavailable("iterate stale contracts", err)
	}
	return records, nil
}

// Close は MongoDB との接続を切断します。
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// missOrConflict は条件付き更新が一致しなかった理由を判定します。
func (s *MongoStore) missOrConflict(ctx context.Context, oid primitive.ObjectID) error {
	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
	if err != nil {
		return unavailable("count contract", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrInvalidTransition
}

func transitionFilter(oid primitive.ObjectID, next Status, progress int) bson.M {
	return bson.M{
		"_id":      oid,
		"status":   bson.M{"$in": allowedFrom(next)},
		"progress": bson.M{"$lte": progress},
	}
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return oid, nil
}
