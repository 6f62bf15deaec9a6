package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fahdi/pakpropertyapp-sub001/internal/config"
	"github.com/fahdi/pakpropertyapp-sub001/internal/db"
	"github.com/fahdi/pakpropertyapp-sub001/internal/metrics"
	"github.com/fahdi/pakpropertyapp-sub001/internal/models"
)

// IPropertyService is the coordination contract the inquiry core holds
// with the listing directory. The core reads availability and maintains
// the derived inquiry counter; it never writes property status as a side
// effect of an inquiry transition. Marking a property rented is the
// owner's own, separately-called operation (SetPropertyStatus).
type IPropertyService interface {
	GetPropertyAvailability(ctx context.Context, propertyID primitive.ObjectID) (*models.PropertyAvailability, error)
	IncrementInquiryCount(ctx context.Context, propertyID primitive.ObjectID, delta int64) error
	SetPropertyStatus(ctx context.Context, actor models.Actor, propertyID primitive.ObjectID, status models.PropertyStatus) error
	ReconcileInquiryCounts(ctx context.Context) (int, error)
}

type propertyService struct {
	db      *mongo.Database
	cfg     *config.Config
	metrics *metrics.InquiryMetrics
}

// NewPropertyService creates a new PropertyService.
func NewPropertyService(database *mongo.Database, cfg *config.Config, m *metrics.InquiryMetrics) IPropertyService {
	return &propertyService{db: database, cfg: cfg, metrics: m}
}

// GetPropertyAvailability returns the owner reference and current status
// of a non-deleted property.
func (s *propertyService) GetPropertyAvailability(ctx context.Context, propertyID primitive.ObjectID) (*models.PropertyAvailability, error) {
	var property models.Property
	filter := bson.M{"_id": propertyID, "deleted": false}
	err := s.db.Collection(db.PropertiesCollection).FindOne(ctx, filter).Decode(&property)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, E(KindNotFound, "property %s not found", propertyID.Hex())
		}
		return nil, fmt.Errorf("error finding property %s: %w", propertyID.Hex(), err)
	}
	return &models.PropertyAvailability{
		OwnerID: property.OwnerID,
		AgentID: property.AgentID,
		Status:  property.Status,
	}, nil
}

// IncrementInquiryCount applies an atomic $inc to the derived inquiry
// counter. Never read-modify-write; concurrent creations and
// reconciliations must not lose updates.
func (s *propertyService) IncrementInquiryCount(ctx context.Context, propertyID primitive.ObjectID, delta int64) error {
	update := bson.M{
		"$inc": bson.M{"inquiries": delta},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	result, err := s.db.Collection(db.PropertiesCollection).UpdateOne(ctx, bson.M{"_id": propertyID, "deleted": false}, update)
	if err != nil {
		return fmt.Errorf("db error incrementing inquiry count for property %s: %w", propertyID.Hex(), err)
	}
	if result.MatchedCount == 0 {
		return E(KindNotFound, "property %s not found", propertyID.Hex())
	}
	return nil
}

// SetPropertyStatus changes a property's availability on behalf of its
// owner or agent. Deliberately decoupled from inquiry resolution: a
// caller that wants to resolve an inquiry as rented and take the listing
// off the market invokes both operations explicitly.
func (s *propertyService) SetPropertyStatus(ctx context.Context, actor models.Actor, propertyID primitive.ObjectID, status models.PropertyStatus) error {
	if !models.ValidPropertyStatus(status) {
		return E(KindInvalidArgument, "unknown property status %q", status)
	}
	if !actor.Role.ManagesListings() {
		return E(KindForbidden, "role %s cannot change property status", actor.Role)
	}

	filter := bson.M{"_id": propertyID, "deleted": false}
	if actor.Role != models.RoleAdmin {
		filter["$or"] = bson.A{
			bson.M{"owner_id": actor.ID},
			bson.M{"agent_id": actor.ID},
		}
	}
	update := bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}}

	result, err := s.db.Collection(db.PropertiesCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error updating status of property %s: %w", propertyID.Hex(), err)
	}
	if result.MatchedCount == 0 {
		// Distinguish missing from not-owned for the caller.
		var property models.Property
		checkErr := s.db.Collection(db.PropertiesCollection).FindOne(ctx, bson.M{"_id": propertyID, "deleted": false}).Decode(&property)
		if errors.Is(checkErr, mongo.ErrNoDocuments) {
			return E(KindNotFound, "property %s not found", propertyID.Hex())
		}
		return E(KindForbidden, "property %s is not managed by actor %s", propertyID.Hex(), actor.ID.Hex())
	}
	return nil
}

// ReconcileInquiryCounts recomputes each property's inquiry counter from
// a count of the non-deleted inquiry documents referencing it and
// corrects any drift. The hot path uses best-effort $inc, so a cancelled
// create or a crash between insert and increment leaves bounded drift
// that this pass repairs. Returns the number of corrections applied.
func (s *propertyService) ReconcileInquiryCounts(ctx context.Context) (int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"deleted": false}}},
		{{Key: "$group", Value: bson.M{"_id": "$property_id", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := s.db.Collection(db.InquiriesCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate inquiry counts: %w", err)
	}
	defer cursor.Close(ctx)

	counts := make(map[primitive.ObjectID]int64)
	for cursor.Next(ctx) {
		var row struct {
			PropertyID primitive.ObjectID `bson:"_id"`
			Count      int64              `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return 0, fmt.Errorf("failed to decode inquiry count row: %w", err)
		}
		counts[row.PropertyID] = row.Count
	}
	if err := cursor.Err(); err != nil {
		return 0, fmt.Errorf("inquiry count aggregation cursor error: %w", err)
	}

	properties := s.db.Collection(db.PropertiesCollection)
	propCursor, err := properties.Find(ctx, bson.M{"deleted": false})
	if err != nil {
		return 0, fmt.Errorf("failed to list properties for reconciliation: %w", err)
	}
	defer propCursor.Close(ctx)

	corrected := 0
	for propCursor.Next(ctx) {
		var property models.Property
		if err := propCursor.Decode(&property); err != nil {
			log.Printf("Reconciliation: failed to decode property: %v", err)
			continue
		}
		want := counts[property.ID]
		if property.Inquiries == want {
			continue
		}
		// $set, not $inc: the recomputed value is authoritative here.
		_, err := properties.UpdateOne(ctx,
			bson.M{"_id": property.ID, "inquiries": property.Inquiries},
			bson.M{"$set": bson.M{"inquiries": want, "updated_at": time.Now().UTC()}})
		if err != nil {
			log.Printf("Reconciliation: failed to correct inquiry count for property %s: %v", property.ID.Hex(), err)
			continue
		}
		log.Printf("Reconciliation: property %s inquiry count %d -> %d", property.ID.Hex(), property.Inquiries, want)
		corrected++
	}
	if err := propCursor.Err(); err != nil {
		return corrected, fmt.Errorf("property cursor error during reconciliation: %w", err)
	}

	s.metrics.ObserveReconcileFixes(corrected)
	return corrected, nil
}
