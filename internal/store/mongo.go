package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/shopview/shopview/internal/session"
)

const pingTimeout = 5 * time.Second

// Mongo loads the full session collection from a MongoDB-compatible
// store (Cosmos DB with the Mongo API in production). The client is
// dialed lazily on first load, pooled, and kept for the process
// lifetime; a failed dial is reported as a ConnError and retried on
// the next load.
type Mongo struct {
	uri        string
	database   string
	collection string

	mu     sync.Mutex
	client *mongo.Client
}

// NewMongo creates a Mongo loader. No connection is made until the
// first Load.
func NewMongo(uri, database, collection string) *Mongo {
	return &Mongo{
		uri:        uri,
		database:   database,
		collection: collection,
	}
}

// Load fetches every document in the session collection.
func (m *Mongo) Load(ctx context.Context) ([]session.Document, error) {
	client, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}

	coll := client.Database(m.database).Collection(m.collection)
	cur, err := coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, &ConnError{Err: err}
	}
	defer cur.Close(ctx)

	var docs []session.Document
	for cur.Next(ctx) {
		var raw rawDoc
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decoding session document: %w", err)
		}
		docs = append(docs, raw.document())
	}
	if err := cur.Err(); err != nil {
		return nil, &ConnError{Err: err}
	}
	return docs, nil
}

// connect returns the pooled client, dialing and pinging on first use.
func (m *Mongo) connect(ctx context.Context) (*mongo.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		return m.client, nil
	}
	if m.uri == "" {
		return nil, &ConnError{
			Err: errors.New("no connection string configured"),
		}
	}

	client, err := mongo.Connect(options.Client().ApplyURI(m.uri))
	if err != nil {
		return nil, &ConnError{Err: err}
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, &ConnError{Err: err}
	}

	m.client = client
	return client, nil
}

// Close disconnects the pooled client if one was dialed.
func (m *Mongo) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return nil
	}
	err := m.client.Disconnect(ctx)
	m.client = nil
	return err
}

// rawDoc tolerates the value shapes the store may hold: object ids or
// plain strings for _id, BSON datetimes or ISO strings for the
// timestamps.
type rawDoc struct {
	ID              any            `bson:"_id"`
	StartTime       any            `bson:"startTime"`
	LastActivity    any            `bson:"lastActivity"`
	DeviceInfo      map[string]any `bson:"deviceInfo"`
	SessionMetadata map[string]any `bson:"sessionMetadata"`
	SessionTags     map[string]any `bson:"sessionTags"`
}

func (d rawDoc) document() session.Document {
	return session.Document{
		ID:              idString(d.ID),
		StartTime:       timeValue(d.StartTime),
		LastActivity:    timeValue(d.LastActivity),
		DeviceInfo:      d.DeviceInfo,
		SessionMetadata: d.SessionMetadata,
		SessionTags:     d.SessionTags,
	}
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case bson.ObjectID:
		return id.Hex()
	case fmt.Stringer:
		return id.String()
	}
	return ""
}

func timeValue(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case bson.DateTime:
		return t.Time()
	case string:
		return session.ParseTime(t)
	}
	return time.Time{}
}
