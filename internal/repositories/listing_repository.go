package repositories

import (
	"context"
	"regexp"
	"time"

	"github.com/anonto42/classifieds/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ListingRepository defines the interface for listing data operations
type ListingRepository interface {
	Create(ctx context.Context, listing *models.Listing) error
	GetByID(ctx context.Context, id string) (*models.Listing, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*models.Listing, error)
	ListPublic(ctx context.Context, filter models.ListingFilter, skip, limit int64) ([]models.Listing, int64, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Listing, error)
	UpdateStatus(ctx context.Context, id, status string) (*models.Listing, error)
	Delete(ctx context.Context, id string) error
	ReferencedImagePaths(ctx context.Context, paths []string) (map[string]bool, error)
}

// MongoListingRepository implements ListingRepository for MongoDB
type MongoListingRepository struct {
	collection *mongo.Collection
}

// NewMongoListingRepository creates a new MongoListingRepository
func NewMongoListingRepository(db *mongo.Database) *MongoListingRepository {
	return &MongoListingRepository{collection: db.Collection("listings")}
}

// EnsureIndexes creates the indexes backing the directory, dashboard and janitor queries
func (r *MongoListingRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "moderation_status", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "image_paths", Value: 1}}},
	})
	return err
}

// Create inserts a new listing, assigning its ID and timestamps
func (r *MongoListingRepository) Create(ctx context.Context, listing *models.Listing) error {
	now := time.Now().UTC()
	listing.ID = primitive.NewObjectID()
	listing.CreatedAt = now
	listing.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, listing)
	return err
}

// GetByID retrieves a listing by ID. Malformed IDs are reported as not found.
func (r *MongoListingRepository) GetByID(ctx context.Context, id string) (*models.Listing, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var listing models.Listing
	if err := r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&listing); err != nil {
		return nil, notFound(err)
	}
	return &listing, nil
}

// GetByIDs loads several listings at once, keyed by hex ID. Unknown IDs are skipped.
func (r *MongoListingRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*models.Listing, error) {
	result := make(map[string]*models.Listing, len(ids))
	objIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if objID, err := primitive.ObjectIDFromHex(id); err == nil {
			objIDs = append(objIDs, objID)
		}
	}
	if len(objIDs) == 0 {
		return result, nil
	}

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": objIDs}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var listings []models.Listing
	if err = cursor.All(ctx, &listings); err != nil {
		return nil, err
	}
	for i := range listings {
		result[listings[i].ID.Hex()] = &listings[i]
	}
	return result, nil
}

// ListPublic returns one page of active, approved listings, newest first, and the total match count
func (r *MongoListingRepository) ListPublic(ctx context.Context, filter models.ListingFilter, skip, limit int64) ([]models.Listing, int64, error) {
	query := publicFilter(filter)

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	listings := []models.Listing{}
	findOptions := options.Find().SetSkip(skip).SetLimit(limit).SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, query, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &listings); err != nil {
		return nil, 0, err
	}
	return listings, total, nil
}

// publicFilter builds the directory query. Search text is matched literally and case-insensitively
// against title and description.
func publicFilter(filter models.ListingFilter) bson.M {
	query := bson.M{
		"status":            models.ListingStatusActive,
		"moderation_status": models.ModerationApproved,
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.OwnerID != "" {
		query["owner_id"] = filter.OwnerID
	}
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"description": pattern},
		}
	}
	return query
}

// ListByOwner returns every listing of an owner regardless of status, newest first
func (r *MongoListingRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Listing, error) {
	listings := []models.Listing{}
	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"owner_id": ownerID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &listings); err != nil {
		return nil, err
	}
	return listings, nil
}

// UpdateStatus sets status and updated_at and returns the updated listing
func (r *MongoListingRepository) UpdateStatus(ctx context.Context, id, status string) (*models.Listing, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	update := bson.M{
		"$set": bson.M{
			"status":     status,
			"updated_at": time.Now().UTC(),
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var listing models.Listing
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": objID}, update, opts).Decode(&listing); err != nil {
		return nil, notFound(err)
	}
	return &listing, nil
}

// Delete removes a listing by ID
func (r *MongoListingRepository) Delete(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": objID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ReferencedImagePaths reports which of paths are still referenced by some listing
func (r *MongoListingRepository) ReferencedImagePaths(ctx context.Context, paths []string) (map[string]bool, error) {
	referenced := make(map[string]bool)
	if len(paths) == 0 {
		return referenced, nil
	}

	values, err := r.collection.Distinct(ctx, "image_paths", bson.M{"image_paths": bson.M{"$in": paths}})
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		if p, ok := v.(string); ok {
			referenced[p] = true
		}
	}
	return referenced, nil
}
