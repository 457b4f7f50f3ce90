package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/laundrypro/portal/internal/core/domain"
)

const auditCollection = "auth_events"

// AuditRepository stores session lifecycle transitions.
type AuditRepository struct {
	coll *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{coll: db.Collection(auditCollection)}
}

type mongoAuthEvent struct {
	ID     primitive.ObjectID `bson:"_id,omitempty"`
	Kind   string             `bson:"kind"`
	UserID string             `bson:"user_id,omitempty"`
	Email  string             `bson:"email,omitempty"`
	Role   string             `bson:"role,omitempty"`
	Reason string             `bson:"reason,omitempty"`
	At     int64              `bson:"at"`
}

// EnsureIndexes creates the lookup index used by Recent.
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create audit index: %w", err)
	}
	return nil
}

// Record implements ports.AuthEventRecorder.
func (r *AuditRepository) Record(ctx context.Context, ev domain.AuthEvent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	doc := mongoAuthEvent{
		Kind:   string(ev.Kind),
		UserID: ev.UserID,
		Email:  ev.Email,
		Role:   string(ev.Role),
		Reason: ev.Reason,
		At:     at.UTC().UnixMilli(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}
	return nil
}

// Recent returns the newest events, newest first.
func (r *AuditRepository) Recent(ctx context.Context, limit int64) ([]domain.AuthEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "at", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("find auth events: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoAuthEvent
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode auth events: %w", err)
	}

	out := make([]domain.AuthEvent, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.AuthEvent{
			Kind:   domain.AuthEventKind(d.Kind),
			UserID: d.UserID,
			Email:  d.Email,
			Role:   domain.Role(d.Role),
			Reason: d.Reason,
			At:     milliToTime(d.At),
		})
	}
	return out, nil
}

func milliToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
