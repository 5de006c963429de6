package db

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ststudios/whitelist/types"
)

const (
	mongoDatabase   = "whitelist"
	mongoCollection = "formularios"
)

// MongoStore is the MongoDB-backed Store. Applicant uniqueness is enforced
// by a unique index on discord_id so that concurrent submissions for the
// same user cannot race into two documents.
type MongoStore struct {
	client *mongo.Client
}

type mongoApplication struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	ApplicantID     string             `bson:"discord_id"`
	ApplicantName   string             `bson:"discord_name"`
	ApplicantAvatar string             `bson:"discord_avatar"`
	GameHandle      string             `bson:"roblox"`
	Age             int64              `bson:"idade"`
	Experience      string             `bson:"experiencia"`
	Status          string             `bson:"status"`
	RejectionReason string             `bson:"motivo_reprova"`
	CreatedAt       time.Time          `bson:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at"`
}

// NewMongoStore creates a Store on top of an established mongo client and
// ensures the unique applicant index exists.
func NewMongoStore(ctx context.Context, client *mongo.Client) (*MongoStore, error) {
	s := &MongoStore{client: client}
	_, err := s.collection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "discord_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) collection() *mongo.Collection {
	return s.client.Database(mongoDatabase).Collection(mongoCollection)
}

func (s *MongoStore) FindByApplicantID(ctx context.Context, applicantID string) (*types.Application, error) {
	return s.findOne(ctx, bson.M{"discord_id": applicantID})
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (*types.Application, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*types.Application, error) {
	var doc mongoApplication
	err := s.collection().FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	app := fromMongo(doc)
	return &app, nil
}

func (s *MongoStore) Insert(ctx context.Context, app *types.Application) (*types.Application, error) {
	doc := toMongo(*app)
	doc.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	_, err := s.collection().InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateApplicant
		}
		return nil, err
	}
	stored := fromMongo(doc)
	return &stored, nil
}

func (s *MongoStore) Update(ctx context.Context, app *types.Application) (*types.Application, error) {
	oid, err := primitive.ObjectIDFromHex(app.ID)
	if err != nil {
		return nil, ErrNotFound
	}
	after := options.After
	result := s.collection().FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{
			"discord_name":   app.ApplicantName,
			"discord_avatar": app.ApplicantAvatar,
			"roblox":         app.GameHandle,
			"idade":          app.Age,
			"experiencia":    app.Experience,
			"status":         string(app.Status),
			"motivo_reprova": app.RejectionReason,
			"updated_at":     time.Now().UTC(),
		}},
		&options.FindOneAndUpdateOptions{ReturnDocument: &after},
	)
	if result.Err() == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if result.Err() != nil {
		return nil, result.Err()
	}
	var doc mongoApplication
	if err := result.Decode(&doc); err != nil {
		return nil, err
	}
	updated := fromMongo(doc)
	return &updated, nil
}

func (s *MongoStore) ListByStatus(ctx context.Context, status types.Status, limit int64) ([]types.Application, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = string(status)
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return s.find(ctx, filter, opts)
}

func (s *MongoStore) CountByStatus(ctx context.Context) (map[types.Status]int64, error) {
	cur, err := s.collection().Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	counts := make(map[types.Status]int64)
	for cur.Next(ctx) {
		var row struct {
			Status string `bson:"_id"`
			Count  int64  `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		counts[types.Status(row.Status)] = row.Count
	}
	return counts, cur.Err()
}

func (s *MongoStore) Search(ctx context.Context, query string, limit int64) ([]types.Application, error) {
	pattern := primitive.Regex{Pattern: regexQuote(query), Options: "i"}
	filter := bson.M{"$or": []bson.M{
		{"discord_id": query},
		{"discord_name": pattern},
		{"roblox": pattern},
	}}
	if oid, err := primitive.ObjectIDFromHex(query); err == nil {
		filter["$or"] = append(filter["$or"].([]bson.M), bson.M{"_id": oid})
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return s.find(ctx, filter, opts)
}

func (s *MongoStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]types.Application, error) {
	cur, err := s.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	apps := make([]types.Application, 0)
	for cur.Next(ctx) {
		var doc mongoApplication
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		apps = append(apps, fromMongo(doc))
	}
	return apps, cur.Err()
}

func toMongo(app types.Application) mongoApplication {
	return mongoApplication{
		ApplicantID:     app.ApplicantID,
		ApplicantName:   app.ApplicantName,
		ApplicantAvatar: app.ApplicantAvatar,
		GameHandle:      app.GameHandle,
		Age:             app.Age,
		Experience:      app.Experience,
		Status:          string(app.Status),
		RejectionReason: app.RejectionReason,
	}
}

func fromMongo(doc mongoApplication) types.Application {
	return types.Application{
		ID:              doc.ID.Hex(),
		ApplicantID:     doc.ApplicantID,
		ApplicantName:   doc.ApplicantName,
		ApplicantAvatar: doc.ApplicantAvatar,
		GameHandle:      doc.GameHandle,
		Age:             doc.Age,
		Experience:      doc.Experience,
		Status:          types.Status(doc.Status),
		RejectionReason: doc.RejectionReason,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
}

// regexQuote escapes regex metacharacters so user queries match literally
func regexQuote(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`\.+*?()|[]{}^$`, r) {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
