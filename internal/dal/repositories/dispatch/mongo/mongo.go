package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispatch"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "dispatches"

// DispatchRepository stores dispatch records in MongoDB.
type DispatchRepository struct {
	collection *mongo.Collection
}

// MustNewDispatchRepository binds the collection and ensures its indexes.
// The unique index on order_ref is the store-level guard for the dispatch trigger.
func MustNewDispatchRepository(ctx context.Context, db *mongo.Database) *DispatchRepository {
	collection := db.Collection(collectionName)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "order_ref", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}},
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		panic(fmt.Sprintf("cannot create dispatch indexes: %v", err))
	}

	return &DispatchRepository{
		collection: collection,
	}
}

// Create inserts a record. Duplicate order references return the driver error.
func (r *DispatchRepository) Create(ctx context.Context, rec *dispatch.Record) error {
	res, err := r.collection.InsertOne(ctx, rec)
	if err != nil {
		return fmt.Errorf("cannot insert dispatch: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		rec.ID = id
	}

	return nil
}

// GetByOrderRef returns nil when no record exists.
func (r *DispatchRepository) GetByOrderRef(ctx context.Context, orderRef string) (*dispatch.Record, error) {
	var rec dispatch.Record
	err := r.collection.FindOne(ctx, bson.M{"order_ref": orderRef}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot find dispatch by order_ref: %w", err)
	}

	return &rec, nil
}

// Transition is a conditional UpdateOne filtered on the prior status.
func (r *DispatchRepository) Transition(
	ctx context.Context,
	orderRef string,
	from, to dispatch.Status,
	courierID string,
	at time.Time,
) (bool, error) {
	filter := bson.M{"order_ref": orderRef, "status": from}
	set := bson.M{"status": to, "updated_at": at}

	switch to {
	case dispatch.StatusAccepted:
		set["courier_id"] = courierID
		set["accepted_at"] = at
	case dispatch.StatusPickedUp:
		filter["courier_id"] = courierID
		set["picked_up_at"] = at
	case dispatch.StatusDelivered:
		filter["courier_id"] = courierID
		set["delivered_at"] = at
	}

	res, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("cannot update dispatch: %w", err)
	}

	return res.ModifiedCount == 1, nil
}

// List returns records in the requested status, oldest first.
func (r *DispatchRepository) List(ctx context.Context, q dispatch.QueryModel) ([]dispatch.Record, error) {
	filter := bson.M{}
	if q.Status != "" {
		filter["status"] = q.Status
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	if q.Offset > 0 {
		opts.SetSkip(int64(q.Offset))
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list dispatches: %w", err)
	}
	defer cursor.Close(ctx)

	records := []dispatch.Record{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("cannot decode dispatches: %w", err)
	}

	return records, nil
}
