package mongodb

import (
	"context"
	"fmt"
	"time"

	notificationDomain "github.com/davicafu/placementlab/internal/notification/domain"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// NotificationRepoMongoDB implementa NotificationRepository sobre una colección de MongoDB.
type NotificationRepoMongoDB struct {
	coll *mongo.Collection
}

// NewNotificationRepoMongoDB comprueba la conexión y devuelve el repositorio.
func NewNotificationRepoMongoDB(ctx context.Context, client *mongo.Client, dbName string) (*NotificationRepoMongoDB, error) {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}
	return &NotificationRepoMongoDB{coll: client.Database(dbName).Collection("notifications")}, nil
}

// --- Struct de BSON para el mapeo ---
// Se define aquí para no llevar tags de BSON al dominio.

type mongoNotification struct {
	ID            string    `bson:"_id"`
	EventType     string    `bson:"eventType"`
	AggregateType string    `bson:"aggregateType"`
	AggregateID   string    `bson:"aggregateId"`
	Severity      string    `bson:"severity"`
	Message       string    `bson:"message"`
	CorrelationID string    `bson:"correlationId"`
	OccurredAt    time.Time `bson:"occurredAt"`
	CreatedAt     time.Time `bson:"createdAt"`
}

// EnsureIndexes crea el índice de consulta por agregado.
func (r *NotificationRepoMongoDB) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "aggregateId", Value: 1}, {Key: "occurredAt", Value: 1}},
	})
	return err
}

// Upsert usa $setOnInsert: una repetición no modifica el documento existente.
func (r *NotificationRepoMongoDB) Upsert(ctx context.Context, n *notificationDomain.Notification) (bool, error) {
	doc := toMongo(n)
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": doc.ID},
		bson.M{"$setOnInsert": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("mongo upsert notification: %w", err)
	}
	return res.UpsertedCount == 1, nil
}

func (r *NotificationRepoMongoDB) ListByAggregate(ctx context.Context, aggregateID string, limit int) ([]*notificationDomain.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "occurredAt", Value: 1}}).SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, bson.M{"aggregateId": aggregateID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []*notificationDomain.Notification{}
	for cursor.Next(ctx) {
		var doc mongoNotification
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		n, err := fromMongo(&doc)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, cursor.Err()
}

func toMongo(n *notificationDomain.Notification) mongoNotification {
	return mongoNotification{
		ID:            n.ID.String(),
		EventType:     n.EventType,
		AggregateType: n.AggregateType,
		AggregateID:   n.AggregateID,
		Severity:      string(n.Severity),
		Message:       n.Message,
		CorrelationID: n.CorrelationID,
		OccurredAt:    n.OccurredAt,
		CreatedAt:     n.CreatedAt,
	}
}

func fromMongo(doc *mongoNotification) (*notificationDomain.Notification, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid notification id %q: %w", doc.ID, err)
	}
	return &notificationDomain.Notification{
		ID:            id,
		EventType:     doc.EventType,
		AggregateType: doc.AggregateType,
		AggregateID:   doc.AggregateID,
		Severity:      notificationDomain.Severity(doc.Severity),
		Message:       doc.Message,
		CorrelationID: doc.CorrelationID,
		OccurredAt:    doc.OccurredAt.UTC(),
		CreatedAt:     doc.CreatedAt.UTC(),
	}, nil
}

// Verificación en tiempo de compilación.
var _ notificationDomain.NotificationRepository = (*NotificationRepoMongoDB)(nil)
