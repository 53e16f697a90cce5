package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LennoxMacadangdang/caps-backend/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrItemNotFound = errors.New("item not found in cart")
)

// Repository persists one cart document per session. Implementations must
// apply every mutation atomically on the stored document.
type Repository interface {
	GetCart(ctx context.Context, sessionID string) (*domain.Cart, error)
	// AddLine merges into the line with the same (id, type, size) or appends.
	AddLine(ctx context.Context, sessionID string, line domain.CartLine) error
	// RemoveOne decrements the matching line and drops it at zero. An empty
	// size on a service line matches the first line of that service.
	RemoveOne(ctx context.Context, sessionID string, id int64, typ domain.ItemType, size domain.SizeTier) error
	DeleteCart(ctx context.Context, sessionID string) error
}

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(5)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client.Database(database), nil
}

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{collection: db.Collection("carts")}
}

func (m *MongoRepository) GetCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	var c domain.Cart
	err := m.collection.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return &c, nil
}

// lineMatch selects the array element with the key of a line. Product lines
// carry no size field at all.
func lineMatch(id int64, typ domain.ItemType, size domain.SizeTier) bson.M {
	m := bson.M{"id": id, "type": typ}
	if size == "" {
		m["size"] = bson.M{"$in": bson.A{nil, ""}}
	} else {
		m["size"] = size
	}
	return m
}

const maxAddAttempts = 3

func (m *MongoRepository) AddLine(ctx context.Context, sessionID string, line domain.CartLine) error {
	now := time.Now().UTC()
	line.AddedAt = now
	match := lineMatch(line.ID, line.Type, line.Size)

	for attempt := 0; attempt < maxAddAttempts; attempt++ {
		res, err := m.collection.UpdateOne(ctx,
			bson.M{"session_id": sessionID, "items": bson.M{"$elemMatch": match}},
			bson.M{
				"$inc": bson.M{"items.$.quantity": line.Quantity},
				"$set": bson.M{"updated_at": now},
			})
		if err != nil {
			return fmt.Errorf("failed to merge cart line: %w", err)
		}
		if res.MatchedCount > 0 {
			return nil
		}

		// No mergeable line: push, creating the cart if needed. When a
		// concurrent add pushed the same key first the filter misses, the
		// upsert collides on the unique session index and we merge instead.
		_, err = m.collection.UpdateOne(ctx,
			bson.M{"session_id": sessionID, "items": bson.M{"$not": bson.M{"$elemMatch": match}}},
			bson.M{
				"$push":        bson.M{"items": line},
				"$set":         bson.M{"updated_at": now},
				"$setOnInsert": bson.M{"created_at": now},
			},
			options.Update().SetUpsert(true))
		if err == nil {
			return nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("failed to add cart line: %w", err)
		}
	}
	return fmt.Errorf("failed to add cart line: concurrent updates on session %s", sessionID)
}

func (m *MongoRepository) RemoveOne(ctx context.Context, sessionID string, id int64, typ domain.ItemType, size domain.SizeTier) error {
	if typ == domain.ItemService && size == "" {
		c, err := m.GetCart(ctx, sessionID)
		if errors.Is(err, ErrCartNotFound) {
			return ErrItemNotFound
		}
		if err != nil {
			return err
		}
		found := false
		for _, l := range c.Items {
			if l.ID == id && l.Type == typ {
				size, found = l.Size, true
				break
			}
		}
		if !found {
			return ErrItemNotFound
		}
	}

	now := time.Now().UTC()
	match := lineMatch(id, typ, size)

	dec := bson.M{"quantity": bson.M{"$gt": 1}}
	for k, v := range match {
		dec[k] = v
	}
	res, err := m.collection.UpdateOne(ctx,
		bson.M{"session_id": sessionID, "items": bson.M{"$elemMatch": dec}},
		bson.M{
			"$inc": bson.M{"items.$.quantity": -1},
			"$set": bson.M{"updated_at": now},
		})
	if err != nil {
		return fmt.Errorf("failed to decrement cart line: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	res, err = m.collection.UpdateOne(ctx,
		bson.M{"session_id": sessionID, "items": bson.M{"$elemMatch": match}},
		bson.M{
			"$pull": bson.M{"items": match},
			"$set":  bson.M{"updated_at": now},
		})
	if err != nil {
		return fmt.Errorf("failed to remove cart line: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrItemNotFound
	}
	return nil
}

// DeleteCart succeeds when there is no cart.
func (m *MongoRepository) DeleteCart(ctx context.Context, sessionID string) error {
	if _, err := m.collection.DeleteOne(ctx, bson.M{"session_id": sessionID}); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(30 * 24 * 60 * 60),
		},
	}
	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
