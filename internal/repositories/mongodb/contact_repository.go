package mongodb

import (
	"context"
	"fmt"
	"time"

	"sosguard/internal/models"
	"sosguard/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type contactRepository struct {
	collection *mongo.Collection
}

func NewContactRepository(db *mongo.Database) interfaces.ContactRepository {
	return &contactRepository{
		collection: db.Collection("emergency_contacts"),
	}
}

func (r *contactRepository) Create(ctx context.Context, contact *models.EmergencyContact) error {
	contact.ID = primitive.NewObjectID()
	contact.CreatedAt = time.Now()
	contact.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, contact)
	if err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}

	return nil
}

func (r *contactRepository) GetByOwnerID(ctx context.Context, ownerID primitive.ObjectID) ([]*models.EmergencyContact, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"owner_id": ownerID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find contacts: %w", err)
	}
	defer cursor.Close(ctx)

	var contacts []*models.EmergencyContact
	for cursor.Next(ctx) {
		var contact models.EmergencyContact
		if err := cursor.Decode(&contact); err != nil {
			return nil, fmt.Errorf("failed to decode contact: %w", err)
		}
		contacts = append(contacts, &contact)
	}

	return contacts, nil
}

func (r *contactRepository) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()

	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": updates},
	)
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}

	return nil
}

func (r *contactRepository) Delete(ctx context.Context, ownerID, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "owner_id": ownerID})
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("contact not found")
	}

	return nil
}
