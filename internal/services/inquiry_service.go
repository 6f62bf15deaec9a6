package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fahdi/pakpropertyapp-sub001/internal/config"
	"github.com/fahdi/pakpropertyapp-sub001/internal/db"
	"github.com/fahdi/pakpropertyapp-sub001/internal/metrics"
	"github.com/fahdi/pakpropertyapp-sub001/internal/models"
	"github.com/fahdi/pakpropertyapp-sub001/internal/notify"
)

// Message bounds shared by create, respond and communication appends.
const (
	MinMessageLen = 10
	MaxMessageLen = 1000
)

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9][0-9\-\s()]{6,19}$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// CreateInquiryParams carries the tenant's creation request.
type CreateInquiryParams struct {
	PropertyID     primitive.ObjectID
	Message        string
	Contact        models.ContactInfo
	Type           models.InquiryType
	Priority       models.InquiryPriority
	Requirements   *models.Requirements
	IdempotencyKey string
}

// IInquiryService owns the inquiry lifecycle: creation under the
// one-active-per-(property,tenant) rule, owner-side transitions, the
// append-only communication log, and expiry of stale threads.
type IInquiryService interface {
	CreateInquiry(ctx context.Context, tenant models.Actor, params CreateInquiryParams) (*models.Inquiry, error)
	GetInquiry(ctx context.Context, actor models.Actor, inquiryID primitive.ObjectID) (*models.Inquiry, error)
	ListInquiries(ctx context.Context, actor models.Actor, status *models.InquiryStatus, limit int) ([]models.Inquiry, error)
	RespondToInquiry(ctx context.Context, actor models.Actor, inquiryID primitive.ObjectID, message, nextAction string) (*models.Inquiry, error)
	ScheduleViewing(ctx context.Context, actor models.Actor, inquiryID primitive.ObjectID, scheduledDate time.Time, notes string) (*models.Inquiry, error)
	UpdateStatus(ctx context.Context, actor models.Actor, inquiryID primitive.ObjectID, newStatus models.InquiryStatus) (*models.Inquiry, error)
	MarkRead(ctx context.Context, actor models.Actor, inquiryID primitive.ObjectID) error
	AddCommunication(ctx context.Context, actor models.Actor, inquiryID primitive.ObjectID, channel models.ContactChannel, direction models.CommDirection, text string) (*models.Inquiry, error)
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

type inquiryService struct {
	db          *mongo.Database
	cfg         *config.Config
	propertySvc IPropertyService
	idemStore   IIdempotencyStore
	dispatcher  notify.Dispatcher
	metrics     *metrics.InquiryMetrics
}

// NewInquiryService creates a new InquiryService. idemStore may be nil
// when the deployment has no Redis-backed idempotency (keys are then
// ignored).
func NewInquiryService(
	database *mongo.Database,
	cfg *config.Config,
	propertySvc IPropertyService,
	idemStore IIdempotencyStore,
	dispatcher notify.Dispatcher,
	m *metrics.InquiryMetrics,
) IInquiryService {
	return &inquiryService{
		db:          database,
		cfg:         cfg,
		propertySvc: propertySvc,
		idemStore:   idemStore,
		dispatcher:  dispatcher,
		metrics:     m,
	}
}

func (s *inquiryService) collection() *mongo.Collection {
	return s.db.Collection(db.InquiriesCollection)
}

// findByID loads a non-deleted inquiry or returns a not-found error.
func (s *inquiryService) findByID(ctx context.Context, inquiryID primitive.ObjectID) (*models.Inquiry, error) {
	var inq models.Inquiry
	err := s.collection().FindOne(ctx, bson.M{"_id": inquiryID, "deleted": false}).Decode(&inq)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, E(KindNotFound, "inquiry %s not found", inquiryID.Hex())
		}
		return nil, fmt.Errorf("error finding inquiry %s: %w", inquiryID.Hex(), err)
	}
	return &inq, nil
}

func validateMessage(message string) error {
	if len(message) < MinMessageLen || len(message) > MaxMessageLen {
		return E(KindInvalidArgument, "message length must be between %d and %d characters", MinMessageLen, MaxMessageLen)
	}
	return nil
}

func validateContact(contact models.ContactInfo) error {
	if len(contact.Name) < 2 || len(contact.Name) > 100 {
		return E(KindInvalidArgument, "contact name must be between 2 and 100 characters")
	}
	if !phonePattern.MatchString(contact.Phone) {
		return E(KindInvalidArgument, "contact phone %q is not a valid phone number", contact.Phone)
	}
	if !emailPattern.MatchString(contact.Email) {
		return E(KindInvalidArgument, "contact email %q is not a valid email address", contact.Email)
	}
	return nil
}

// CreateInquiry creates a pending inquiry against an available property.
//
// The one-active-inquiry-per-(property,tenant) rule is enforced by the
// uniq_active_inquiry partial unique index, so the insert itself is the
// atomic check-and-reserve; there is no racy find-then-insert. The
// property counter increment is best effort on this path and repaired by
// the reconciliation task if the request dies in between.
func (s *inquiryService) CreateInquiry(ctx context.Context, tenant models.Actor, params CreateInquiryParams) (*models.Inquiry, error) {
	if err := validateMessage(params.Message); err != nil {
		return nil, err
	}
	if err := validateContact(params.Contact); err != nil {
		return nil, err
	}
	if params.Type == "" {
		params.Type = models.InquiryTypeGeneral
	}
	if !models.ValidInquiryType(params.Type) {
		return nil, E(KindInvalidArgument, "unknown inquiry type %q", params.Type)
	}
	if params.Priority == "" {
		params.Priority = models.PriorityMedium
	}

	// Idempotent re-delivery: a completed key short-circuits to the
	// original inquiry without touching the counter again. Keys are
	// scoped per tenant so one client's key can never replay another
	// tenant's inquiry.
	idemKey := ""
	if params.IdempotencyKey != "" && s.idemStore != nil {
		idemKey = tenant.ID.Hex() + ":" + params.IdempotencyKey
		owned, existingID, err := s.idemStore.Reserve(ctx, idemKey)
		if err != nil {
			return nil, err
		}
		if !owned {
			priorID, parseErr := primitive.ObjectIDFromHex(existingID)
			if parseErr != nil {
				return nil, fmt.Errorf("corrupt idempotency record for key %s: %w", params.IdempotencyKey, parseErr)
			}
			prior, err := s.findByID(ctx, priorID)
			if err != nil {
				return nil, err
			}
			if prior.TenantID != tenant.ID || prior.PropertyID != params.PropertyID {
				return nil, E(KindConflict, "idempotency key %s was already used for a different request", params.IdempotencyKey)
			}
			return prior, nil
		}
	}

	availability, err := s.propertySvc.GetPropertyAvailability(ctx, params.PropertyID)
	if err != nil {
		s.releaseIdem(ctx, idemKey)
		return nil, err
	}
	if availability.Status != models.PropertyAvailable {
		s.releaseIdem(ctx, idemKey)
		return nil, E(KindUnavailable, "property %s is %s, not open for inquiries", params.PropertyID.Hex(), availability.Status)
	}

	now := time.Now().UTC()
	inq := &models.Inquiry{
		ID:             primitive.NewObjectID(),
		PropertyID:     params.PropertyID,
		TenantID:       tenant.ID,
		OwnerID:        availability.OwnerID,
		Type:           params.Type,
		Priority:       params.Priority,
		Status:         models.StatusPending,
		Contact:        params.Contact,
		Message:        params.Message,
		Requirements:   params.Requirements,
		Communications: []models.Communication{},
		ExpiresAt:      now.Add(s.cfg.InquiryExpiry),
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if params.Type == models.InquiryTypeViewing {
		inq.Viewing = &models.Viewing{RequestedDate: &now}
	}

	if _, err := s.collection().InsertOne(ctx, inq); err != nil {
		s.releaseIdem(ctx, idemKey)
		if db.IsMongoDuplicateKeyError(err) {
			return nil, Wrap(KindConflict, err,
				"tenant %s already has an active inquiry for property %s", tenant.ID.Hex(), params.PropertyID.Hex())
		}
		return nil, fmt.Errorf("failed to insert inquiry: %w", err)
	}

	if err := s.propertySvc.IncrementInquiryCount(ctx, params.PropertyID, 1); err != nil {
		// The inquiry exists; the counter is eventually consistent and
		// the reconciliation task corrects the drift.
		log.Printf("WARN: inquiry %s created but counter increment failed for property %s: %v",
			inq.ID.Hex(), params.PropertyID.Hex(), err)
	}

	if idemKey != "" {
		if err := s.idemStore.Complete(ctx, idemKey, inq.ID.Hex()); err != nil {
			log.Printf("WARN: failed to record idempotency key for inquiry %s: %v", inq.ID.Hex(), err)
		}
	}

	s.metrics.ObserveCreated()
	s.dispatcher.InquiryCreated(ctx, inq)
	return inq, nil
}

func (s *inquiryService) releaseIdem(ctx context.Context, key string) {
	if key != "" && s.idemStore != nil {
		s.idemStore.Release(ctx, key)
	}
}

// GetInquiry returns an inquiry to one of its participants.
func (s *inquiryService) GetInquiry(ctx context.Context, actor models.Actor, inquiryID primitive.ObjectID) (*models.Inquiry, error) {
	inq, err := s.findByID(ctx, inquiryID)
	if err != nil {
		return nil, err
	}
	if !inq.Participant(actor.ID) {
		return nil, E(KindForbidden, "actor %s is not a participant of inquiry %s", actor.ID.Hex(), inquiryID.Hex())
	}
	return inq, nil
}

// ListInquiries returns the actor's side of their inquiry threads, newest
// first. Tenants see inquiries they opened; listing managers see the ones
// they own.
func (s *inquiryService) ListInquiries(ctx context.Context, actor models.Actor, status *models.InquiryStatus, limit int) ([]models.Inquiry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	filter := bson.M{"deleted": false}
	if actor.Role.ManagesListings() {
		filter["owner_id"] = actor.ID
	} else {
		filter["tenant_id"] = actor.ID
	}
	if status != nil {
		filter["status"] = *status
	}

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := s.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list inquiries: %w", err)
	}
	defer cursor.Close(ctx)

	var results []models.Inquiry
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode inquiries: %w", err)
	}
	return results, nil
}

// authorizeOwner verifies the actor is the inquiry's denormalized owner.
func authorizeOwner(actor models.Actor, inq *models.Inquiry) error {
	if !actor.Role.ManagesListings() || actor.ID != inq.OwnerID {
		return E(KindForbidden, "actor %s does not own inquiry %s", actor.ID.Hex(), inq.ID.Hex())
	}
	return nil
}

// classifyUpdateMiss re-reads an inquiry after a conditional update
// matched nothing and reports why.
func (s *inquiryService) classifyUpdateMiss(ctx context.Context, inquiryID primitive.ObjectID, version int64, legalFrom []models.InquiryStatus) error {
	current, err := s.findByID(ctx, inquiryID)
	if err != nil {
		return err
	}
	for _, from := range legalFrom {
		if current.Status == from {
			// Status still legal, so the version moved under us.
			if current.Version != version {
				return E(KindConflict, "inquiry %s was modified concurrently", inquiryID.Hex())
			}
			break
		}
	}
	if current.Status.Terminal() {
		return E(KindInvalidState, "inquiry %s is already %s", inquiryID.Hex(), current.Status)
	}
	return E(KindConflict, "inquiry %s changed state concurrently (now %s)", inquiryID.Hex(), current.Status)
}

// RespondToInquiry records the owner's reply. Responding is legal from
// pending and responded; re-responding replaces the response and appends
// another outbound communication entry.
func (s *inquiryService) RespondToInquiry(ctx context.Context, actor models.Actor, inquiryID primitive.ObjectID, message, nextAction string) (*models.Inquiry, error) {
	if err := validateMessage(message); err != nil {
		return nil, err
	}

	inq, err := s.findByID(ctx, inquiryID)
	if err != nil {
		return nil, err
	}
	if err := authorizeOwner(actor, inq); err != nil {
		return nil, err
	}
	if inq.Status.Terminal() {
		return nil, E(KindInvalidState, "inquiry %s is already %s", inquiryID.Hex(), inq.Status)
	}
	if inq.Status != models.StatusPending && inq.Status != models.StatusResponded {
		return nil, E(KindInvalidState, "cannot respond to inquiry %s in state %s", inquiryID.Hex(), inq.Status)
	}

	now := time.Now().UTC()
	channel := inq.Contact.PreferredChannel
	if channel == "" {
		channel = models.ChannelEmail
	}

	set := bson.M{
		"response": models.Response{
			Message:     message,
			RespondedBy: actor.ID,
			RespondedAt: now,
			NextAction:  nextAction,
		},
		"status":     models.StatusResponded,
		"updated_at": now,
	}
	if inq.RespondedAt == nil {
		// First-response analytics timestamp survives re-responses.
		set["responded_at"] = now
	}

	filter := bson.M{
		"_id":      inquiryID,
		"owner_id": actor.ID,
		"deleted":  false,
		"status":   bson.M{"$in": bson.A{models.StatusPending, models.StatusResponded}},
		"version":  inq.Version,
	}
	update := bson.M{
		"$set": set,
		"$push": bson.M{"communications": models.Communication{
			Seq:            inq.Interactions + 1,
			Channel:        channel,
			Direction:      models.DirectionOutbound,
			Message:        message,
			Timestamp:      now,
			DeliveryStatus: "queued",
		}},
		"$inc": bson.M{"interactions": 1, "version": 1},
	}

	var updated models.Inquiry
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := s.collection().FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, s.classifyUpdateMiss(ctx, inquiryID, inq.Version,
				[]models.InquiryStatus{models.StatusPending, models.StatusResponded})
		}
		return nil, fmt.Errorf("failed to record response on inquiry %s: %w", inquiryID.Hex(), err)
	}

	if inq.Status == models.StatusPending {
		s.metrics.ObserveTransition(string(models.StatusPending), string(models.StatusResponded))
	}
	s.dispatcher.InquiryResponded(ctx, &updated)
	return &updated, nil
}

// ScheduleViewing books a viewing slot and moves the inquiry to
// viewing-scheduled.
func (s *inquiryService) ScheduleViewing(ctx context.Context, actor models.Actor, inquiryID primitive.ObjectID, scheduledDate time.Time, notes string) (*models.Inquiry, error) {
	now := time.Now().UTC()
	if !scheduledDate.After(now) {
		return nil, E(KindInvalidArgument, "viewing date %s is not in the future", scheduledDate.Format(time.RFC3339))
	}

	inq, err := s.findByID(ctx, inquiryID)
	if err != nil {
		return nil, err
	}
	if err := authorizeOwner(actor, inq); err != nil {
		return nil, err
	}
	if _, err := Transition(inq.Status, models.StatusViewingScheduled); err != nil {
		return nil, err
	}

	viewing := models.Viewing{ScheduledDate: &scheduledDate, Notes: notes}
	if inq.Viewing != nil {
		viewing.RequestedDate = inq.Viewing.RequestedDate
		viewing.CompletedDate = inq.Viewing.CompletedDate
		viewing.Feedback = inq.Viewing.Feedback
	}

	sources := TransitionSources(models.StatusViewingScheduled)
	from := make(bson.A, 0, len(sources))
	for _, fs := range sources {
		from = append(from, fs)
	}

	filter := bson.M{
		"_id":      inquiryID,
		"owner_id": actor.ID,
		"deleted":  false,
		"status":   bson.M{"$in": from},
		"version":  inq.Version,
	}
	update := bson.M{
		"$set": bson.M{
			"viewing":    viewing,
			"status":     models.StatusViewingScheduled,
			"updated_at": now,
		},
		"$inc": bson.M{"version": 1},
	}

	var updated models.Inquiry
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := s.collection().FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, s.classifyUpdateMiss(ctx, inquiryID, inq.Version, sources)
		}
		return nil, fmt.Errorf("failed to schedule viewing on inquiry %s: %w", inquiryID.Hex(), err)
	}

	s.metrics.ObserveTransition(string(inq.Status), string(models.StatusViewingScheduled))
	s.dispatcher.ViewingScheduled(ctx, &updated)
	return &updated, nil
}

// UpdateStatus resolves an inquiry to rented or rejected. Other statuses
// only arise from their dedicated operations (respond, schedule) or the
// sweeper, never from this call. Resolving to rented does not change the
// property's availability; that is the owner's separate decision through
// the listing directory.
func (s *inquiryService) UpdateStatus(ctx context.Context, actor models.Actor, inquiryID primitive.ObjectID, newStatus models.InquiryStatus) (*models.Inquiry, error) {
	if newStatus != models.StatusRented && newStatus != models.StatusRejected {
		return nil, E(KindInvalidTransition, "status %s cannot be set directly", newStatus)
	}

	inq, err := s.findByID(ctx, inquiryID)
	if err != nil {
		return nil, err
	}
	if err := authorizeOwner(actor, inq); err != nil {
		return nil, err
	}
	if _, err := Transition(inq.Status, newStatus); err != nil {
		return nil, err
	}

	filter := bson.M{
		"_id":      inquiryID,
		"owner_id": actor.ID,
		"deleted":  false,
		"status":   inq.Status,
		"version":  inq.Version,
	}
	update := bson.M{
		"$set": bson.M{"status": newStatus, "updated_at": time.Now().UTC()},
		"$inc": bson.M{"version": 1},
	}

	var updated models.Inquiry
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := s.collection().FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, s.classifyUpdateMiss(ctx, inquiryID, inq.Version, []models.InquiryStatus{inq.Status})
		}
		return nil, fmt.Errorf("failed to update status of inquiry %s: %w", inquiryID.Hex(), err)
	}

	s.metrics.ObserveTransition(string(inq.Status), string(newStatus))
	return &updated, nil
}

// MarkRead stamps the owner's read receipt. Idempotent: repeat calls are
// no-ops, not errors.
func (s *inquiryService) MarkRead(ctx context.Context, actor models.Actor, inquiryID primitive.ObjectID) error {
	inq, err := s.findByID(ctx, inquiryID)
	if err != nil {
		return err
	}
	if err := authorizeOwner(actor, inq); err != nil {
		return err
	}
	if inq.ReadAt != nil {
		return nil
	}

	now := time.Now().UTC()
	_, err = s.collection().UpdateOne(ctx,
		bson.M{"_id": inquiryID, "owner_id": actor.ID, "deleted": false, "read_at": nil},
		bson.M{"$set": bson.M{"read_at": now, "updated_at": now}})
	if err != nil {
		return fmt.Errorf("failed to mark inquiry %s read: %w", inquiryID.Hex(), err)
	}
	// MatchedCount 0 means a concurrent call got there first, which is
	// the same outcome.
	return nil
}

// AddCommunication appends one entry to the append-only communication log
// and bumps the interaction counter. Open to either participant of the
// thread. Seq assignment races with concurrent appends are resolved by
// retrying under the version guard.
func (s *inquiryService) AddCommunication(ctx context.Context, actor models.Actor, inquiryID primitive.ObjectID, channel models.ContactChannel, direction models.CommDirection, text string) (*models.Inquiry, error) {
	if len(text) == 0 || len(text) > MaxMessageLen {
		return nil, E(KindInvalidArgument, "communication text length must be between 1 and %d characters", MaxMessageLen)
	}
	if channel == "" {
		channel = models.ChannelEmail
	}
	if direction != models.DirectionInbound && direction != models.DirectionOutbound {
		return nil, E(KindInvalidArgument, "unknown communication direction %q", direction)
	}

	var updated models.Inquiry
	op := func() error {
		inq, err := s.findByID(ctx, inquiryID)
		if err != nil {
			return err
		}
		if !inq.Participant(actor.ID) {
			return E(KindForbidden, "actor %s is not a participant of inquiry %s", actor.ID.Hex(), inquiryID.Hex())
		}

		now := time.Now().UTC()
		filter := bson.M{"_id": inquiryID, "deleted": false, "version": inq.Version}
		update := bson.M{
			"$push": bson.M{"communications": models.Communication{
				Seq:            inq.Interactions + 1,
				Channel:        channel,
				Direction:      direction,
				Message:        text,
				Timestamp:      now,
				DeliveryStatus: "logged",
			}},
			"$inc": bson.M{"interactions": 1, "version": 1},
			"$set": bson.M{"updated_at": now},
		}

		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		if err := s.collection().FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return E(KindConflict, "inquiry %s was modified concurrently", inquiryID.Hex())
			}
			return fmt.Errorf("failed to append communication to inquiry %s: %w", inquiryID.Hex(), err)
		}
		return nil
	}

	err := db.WithRetries(op, db.DefaultMaxRetries, func(err error) bool {
		return IsKind(err, KindConflict)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// ExpireDue transitions every active inquiry whose deadline has passed to
// expired. Idempotent per record; a failure on one record is logged and
// does not abort the batch. Property state and counters are untouched:
// expiry resolves the thread, not the listing.
func (s *inquiryService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	active := models.ActiveStatuses()
	statuses := make(bson.A, 0, len(active))
	for _, st := range active {
		statuses = append(statuses, st)
	}

	cursor, err := s.collection().Find(ctx, bson.M{
		"status":     bson.M{"$in": statuses},
		"expires_at": bson.M{"$lt": now},
		"deleted":    false,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to query expirable inquiries: %w", err)
	}
	defer cursor.Close(ctx)

	expired := 0
	for cursor.Next(ctx) {
		var inq models.Inquiry
		if err := cursor.Decode(&inq); err != nil {
			log.Printf("Sweep: failed to decode inquiry: %v", err)
			s.metrics.ObserveSweepFailure()
			continue
		}

		if _, err := Transition(inq.Status, models.StatusExpired); err != nil {
			// Already terminal by the time we got here; nothing to do.
			continue
		}

		result, err := s.collection().UpdateOne(ctx,
			bson.M{"_id": inq.ID, "status": inq.Status},
			bson.M{
				"$set": bson.M{"status": models.StatusExpired, "expired_at": now, "updated_at": now},
				"$inc": bson.M{"version": 1},
			})
		if err != nil {
			log.Printf("Sweep: failed to expire inquiry %s: %v", inq.ID.Hex(), err)
			s.metrics.ObserveSweepFailure()
			continue
		}
		if result.MatchedCount == 0 {
			// Moved concurrently (possibly already expired); a no-op.
			continue
		}
		s.metrics.ObserveTransition(string(inq.Status), string(models.StatusExpired))
		expired++
	}
	if err := cursor.Err(); err != nil {
		return expired, fmt.Errorf("expirable inquiry cursor error: %w", err)
	}

	s.metrics.ObserveExpired(expired)
	return expired, nil
}
