package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"sfcollab/internal/domain"
)

type messageDoc struct {
	ID          primitive.ObjectID     `bson:"_id,omitempty"`
	SenderID    string                 `bson:"senderId"`
	RecipientID string                 `bson:"recipientId"`
	Content     string                 `bson:"content"`
	File        *domain.FileDescriptor `bson:"file,omitempty"`
	MessageType string                 `bson:"messageType"`
	Status      string                 `bson:"status"`
	IsRead      bool                   `bson:"isRead"`
	Timestamp   time.Time              `bson:"timestamp"`
}

func toMessageDoc(m *domain.Message) messageDoc {
	return messageDoc{
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Content:     m.Content,
		File:        m.File,
		MessageType: string(m.MessageType),
		Status:      string(m.Status),
		IsRead:      m.IsRead,
		Timestamp:   m.Timestamp,
	}
}

func (d messageDoc) toDomain() *domain.Message {
	return &domain.Message{
		ID:          domain.MessageID(d.ID.Hex()),
		SenderID:    d.SenderID,
		RecipientID: d.RecipientID,
		Content:     d.Content,
		File:        d.File,
		MessageType: domain.MessageType(d.MessageType),
		Status:      domain.MessageStatus(d.Status),
		IsRead:      d.IsRead,
		Timestamp:   d.Timestamp.UTC(),
	}
}

type MessageRepo struct {
	coll *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) *MessageRepo {
	return &MessageRepo{coll: db.Collection(messagesCollection)}
}

var _ domain.MessageStore = (*MessageRepo)(nil)

func pairFilter(a, b string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"senderId": a, "recipientId": b},
		bson.M{"senderId": b, "recipientId": a},
	}}
}

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	// BSON dates have millisecond precision
	m.Timestamp = m.Timestamp.Truncate(time.Millisecond)

	doc := toMessageDoc(m)
	doc.ID = primitive.NewObjectID()
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	m.ID = domain.MessageID(doc.ID.Hex())
	return nil
}

func (r *MessageRepo) ListBetween(ctx context.Context, a, b string) ([]*domain.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, pairFilter(a, b), opts)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer cur.Close(ctx)

	var out []*domain.Message
	for cur.Next(ctx) {
		var d messageDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		out = append(out, d.toDomain())
	}
	return out, cur.Err()
}

func (r *MessageRepo) LatestBetween(ctx context.Context, a, b string) (*domain.Message, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	var d messageDoc
	err := r.coll.FindOne(ctx, pairFilter(a, b), opts).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest message: %w", err)
	}
	return d.toDomain(), nil
}

func (r *MessageRepo) CountUnread(ctx context.Context, senderID, recipientID string) (int, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{
		"senderId":    senderID,
		"recipientId": recipientID,
		"isRead":      false,
	})
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return int(n), nil
}

// MarkRead relies on per-document atomicity only: the lookup and the update
// are separate operations, so the update is limited to the ids found.
func (r *MessageRepo) MarkRead(ctx context.Context, ids []domain.MessageID, recipientID string) ([]domain.ReadMark, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(string(id)); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return nil, nil
	}

	cur, err := r.coll.Find(ctx, bson.M{
		"_id":         bson.M{"$in": oids},
		"recipientId": recipientID,
		"isRead":      false,
	}, options.Find().
		SetProjection(bson.M{"_id": 1, "senderId": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find unread: %w", err)
	}
	var docs []struct {
		ID       primitive.ObjectID `bson:"_id"`
		SenderID string             `bson:"senderId"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode unread: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	found := make([]primitive.ObjectID, len(docs))
	marks := make([]domain.ReadMark, len(docs))
	for i, d := range docs {
		found[i] = d.ID
		marks[i] = domain.ReadMark{ID: domain.MessageID(d.ID.Hex()), SenderID: d.SenderID}
	}
	if _, err := r.coll.UpdateMany(ctx, bson.M{
		"_id":         bson.M{"$in": found},
		"recipientId": recipientID,
	}, bson.M{"$set": bson.M{
		"isRead": true,
		"status": string(domain.StatusRead),
	}}); err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	return marks, nil
}

func (r *MessageRepo) ListCounterparts(ctx context.Context, userID string) ([]string, error) {
	recipients, err := r.coll.Distinct(ctx, "recipientId", bson.M{"senderId": userID})
	if err != nil {
		return nil, fmt.Errorf("distinct recipients: %w", err)
	}
	senders, err := r.coll.Distinct(ctx, "senderId", bson.M{"recipientId": userID})
	if err != nil {
		return nil, fmt.Errorf("distinct senders: %w", err)
	}

	seen := make(map[string]struct{})
	var out []string
	for _, id := range append(toStrings(recipients), toStrings(senders)...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func toStrings(vals []any) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
