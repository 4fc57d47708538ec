package repository

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/drivewise/drivewise/internal/models"
)

// carDoc is the stored shape of a listing; field names match the documents
// written by earlier versions of the service
type carDoc struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	Name         string        `bson:"name"`
	Location     string        `bson:"location"`
	Price        int64         `bson:"price"`
	Year         int           `bson:"year"`
	Mileage      int64         `bson:"mileage"`
	Fuel         string        `bson:"fuel"`
	Transmission string        `bson:"transmission"`
	Category     string        `bson:"category"`
	Make         string        `bson:"make"`
	Model        string        `bson:"model"`
	Description  string        `bson:"description"`
	Images       []string      `bson:"images"`
	Image        string        `bson:"image"`
	Featured     bool          `bson:"featured"`
	Seller       string        `bson:"seller"`
	PostedDays   int           `bson:"postedDays"`
	CreatedAt    time.Time     `bson:"createdAt"`
}

func (d *carDoc) toModel() models.Car {
	return models.Car{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Location:     d.Location,
		Price:        d.Price,
		Year:         d.Year,
		Mileage:      d.Mileage,
		Fuel:         d.Fuel,
		Transmission: d.Transmission,
		Category:     d.Category,
		Make:         d.Make,
		Model:        d.Model,
		Description:  d.Description,
		Images:       d.Images,
		Image:        d.Image,
		Featured:     d.Featured,
		Seller:       d.Seller,
		PostedDays:   d.PostedDays,
		CreatedAt:    d.CreatedAt,
	}
}

func carDocFromModel(c *models.Car) carDoc {
	return carDoc{
		Name:         c.Name,
		Location:     c.Location,
		Price:        c.Price,
		Year:         c.Year,
		Mileage:      c.Mileage,
		Fuel:         c.Fuel,
		Transmission: c.Transmission,
		Category:     c.Category,
		Make:         c.Make,
		Model:        c.Model,
		Description:  c.Description,
		Images:       c.Images,
		Image:        c.Image,
		Featured:     c.Featured,
		Seller:       c.Seller,
		PostedDays:   c.PostedDays,
		CreatedAt:    c.CreatedAt,
	}
}

// MongoListingRepository is a ListingRepository over the cars collection
type MongoListingRepository struct {
	coll *mongo.Collection
}

// NewMongoListingRepository initializes a listing repository over db
func NewMongoListingRepository(db *mongo.Database) *MongoListingRepository {
	return &MongoListingRepository{coll: db.Collection("cars")}
}

var _ ListingRepository = (*MongoListingRepository)(nil)

func (r *MongoListingRepository) Create(ctx context.Context, car *models.Car) (string, error) {
	doc := carDocFromModel(car)
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("failed to insert car: %w", err)
	}
	id, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return id.Hex(), nil
}

func (r *MongoListingRepository) FindByID(ctx context.Context, id string) (*models.Car, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc carDoc
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find car: %w", err)
	}
	car := doc.toModel()
	return &car, nil
}

func (r *MongoListingRepository) Find(ctx context.Context, filter ListingFilter, sort ListingSort, page Page) ([]models.Car, int64, error) {
	query := bson.M{}
	if filter.Search != "" {
		query["name"] = bson.M{"$regex": regexp.QuoteMeta(filter.Search), "$options": "i"}
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.FeaturedOnly {
		query["featured"] = true
	}
	price := bson.M{}
	if filter.MinPrice != nil {
		price["$gte"] = *filter.MinPrice
	}
	if filter.MaxPrice != nil {
		price["$lte"] = *filter.MaxPrice
	}
	if len(price) > 0 {
		query["price"] = price
	}

	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count cars: %w", err)
	}

	opts := options.Find().
		SetSort(sortSpec(sort)).
		SetSkip(int64(page.Number-1) * int64(page.Size)).
		SetLimit(int64(page.Size))
	cur, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find cars: %w", err)
	}
	var docs []carDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode cars: %w", err)
	}
	cars := make([]models.Car, 0, len(docs))
	for i := range docs {
		cars = append(cars, docs[i].toModel())
	}
	return cars, total, nil
}

func sortSpec(sort ListingSort) bson.D {
	switch sort {
	case SortPriceDesc:
		return bson.D{{Key: "price", Value: -1}}
	case SortYearAsc:
		return bson.D{{Key: "year", Value: 1}}
	case SortYearDesc:
		return bson.D{{Key: "year", Value: -1}}
	default:
		return bson.D{{Key: "price", Value: 1}}
	}
}

func (r *MongoListingRepository) FindBySeller(ctx context.Context, seller string) ([]models.Car, error) {
	cur, err := r.coll.Find(ctx, bson.M{"seller": seller})
	if err != nil {
		return nil, fmt.Errorf("failed to find cars by seller: %w", err)
	}
	var docs []carDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode cars: %w", err)
	}
	cars := make([]models.Car, 0, len(docs))
	for i := range docs {
		cars = append(cars, docs[i].toModel())
	}
	return cars, nil
}

func (r *MongoListingRepository) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("failed to update car: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoListingRepository) Delete(ctx context.Context, id string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete car: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoListingRepository) DeleteBySeller(ctx context.Context, seller string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"seller": seller})
	if err != nil {
		return 0, fmt.Errorf("failed to delete cars by seller: %w", err)
	}
	return res.DeletedCount, nil
}

func (r *MongoListingRepository) CountByCategory(ctx context.Context) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$category"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate categories: %w", err)
	}
	var rows []struct {
		Category string `bson:"_id"`
		Count    int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode category counts: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Category] = row.Count
	}
	return counts, nil
}

func (r *MongoListingRepository) RefreshPostedDays(ctx context.Context, now time.Time) (int64, error) {
	cur, err := r.coll.Find(ctx, bson.M{},
		options.Find().SetProjection(bson.M{"createdAt": 1, "postedDays": 1}))
	if err != nil {
		return 0, fmt.Errorf("failed to scan cars: %w", err)
	}
	var docs []struct {
		ID         bson.ObjectID `bson:"_id"`
		CreatedAt  time.Time     `bson:"createdAt"`
		PostedDays int           `bson:"postedDays"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return 0, fmt.Errorf("failed to decode cars: %w", err)
	}

	var updated int64
	for _, doc := range docs {
		days := PostedDays(doc.CreatedAt, now)
		if days == doc.PostedDays {
			continue
		}
		if _, err := r.coll.UpdateOne(ctx, bson.M{"_id": doc.ID},
			bson.M{"$set": bson.M{"postedDays": days}}); err != nil {
			return updated, fmt.Errorf("failed to refresh postedDays for %s: %w", doc.ID.Hex(), err)
		}
		updated++
	}
	return updated, nil
}

// PostedDays returns the whole days elapsed between createdAt and now
func PostedDays(createdAt, now time.Time) int {
	if now.Before(createdAt) {
		return 0
	}
	return int(now.Sub(createdAt).Hours() / 24)
}

// userDoc is the stored shape of a user account
type userDoc struct {
	ID             bson.ObjectID `bson:"_id,omitempty"`
	FullName       string        `bson:"fullName"`
	Email          string        `bson:"email"`
	PasswordHash   string        `bson:"passwordHash"`
	ContactNumber  string        `bson:"contactNumber,omitempty"`
	ProfilePicture string        `bson:"profilePicture,omitempty"`
	CreatedAt      time.Time     `bson:"createdAt"`
}

func (d *userDoc) toModel() models.User {
	return models.User{
		ID:             d.ID.Hex(),
		FullName:       d.FullName,
		Email:          d.Email,
		PasswordHash:   d.PasswordHash,
		ContactNumber:  d.ContactNumber,
		ProfilePicture: d.ProfilePicture,
		CreatedAt:      d.CreatedAt,
	}
}

// MongoAccountRepository is an AccountRepository over the users collection
type MongoAccountRepository struct {
	coll *mongo.Collection
}

// NewMongoAccountRepository initializes an account repository over db
func NewMongoAccountRepository(db *mongo.Database) *MongoAccountRepository {
	return &MongoAccountRepository{coll: db.Collection("users")}
}

var _ AccountRepository = (*MongoAccountRepository)(nil)

func (r *MongoAccountRepository) Create(ctx context.Context, user *models.User) (string, error) {
	doc := userDoc{
		FullName:       user.FullName,
		Email:          user.Email,
		PasswordHash:   user.PasswordHash,
		ContactNumber:  user.ContactNumber,
		ProfilePicture: user.ProfilePicture,
		CreatedAt:      user.CreatedAt,
	}
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("failed to insert user: %w", err)
	}
	id, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return id.Hex(), nil
}

func (r *MongoAccountRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var doc userDoc
	err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	user := doc.toModel()
	return &user, nil
}

func (r *MongoAccountRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc userDoc
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	user := doc.toModel()
	return &user, nil
}

func (r *MongoAccountRepository) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoAccountRepository) Delete(ctx context.Context, id string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
