package requeststore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/ykhdr/rainbow-crack/pkg/messages"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

const RequestCollection = "requests"

var errDuplicateKey = errors.New("duplicate request id")

// requestCollection is the part of a MongoDB collection the store needs,
// expressed in request terms.
type requestCollection interface {
	FindOne(ctx context.Context, id Id) (*Info, error)
	FindAll(ctx context.Context) ([]*Info, error)
	Insert(ctx context.Context, req *Info) error
	Replace(ctx context.Context, req *Info) error
	DeleteOne(ctx context.Context, id Id) (deleted int64, err error)
	UpdateOne(ctx context.Context, id Id, set bson.M) (matched int64, err error)
}

// mongoStore persists requests in MongoDB and keeps the ones it has seen in
// an in-process cache. Only this process is expected to write them.
type mongoStore struct {
	cache      *xsync.MapOf[Id, *Info]
	collection requestCollection
	now        func() time.Time
}

func NewMongoStore(database *mongo.Database) RequestStore {
	return newMongoStore(&mongoCollection{c: database.Collection(RequestCollection)})
}

func newMongoStore(collection requestCollection) *mongoStore {
	return &mongoStore{
		cache:      xsync.NewMapOf[Id, *Info](),
		collection: collection,
		now:        time.Now,
	}
}

func (s *mongoStore) Get(ctx context.Context, id Id) (*Info, error) {
	if req, ok := s.cache.Load(id); ok {
		return req.Copy(), nil
	}
	req, err := s.collection.FindOne(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "error getting request")
	}
	s.cache.Store(id, req.Copy())
	return req, nil
}

func (s *mongoStore) List(ctx context.Context) ([]*Info, error) {
	result, err := s.collection.FindAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error listing requests")
	}
	for _, req := range result {
		s.cache.Store(req.ID, req.Copy())
	}
	return result, nil
}

func (s *mongoStore) Save(ctx context.Context, req *Info) error {
	err := s.collection.Insert(ctx, req)
	if errors.Is(err, errDuplicateKey) {
		err = s.collection.Replace(ctx, req)
	}
	if err != nil {
		return errors.Wrap(err, "error saving request")
	}
	s.cache.Store(req.ID, req.Copy())
	return nil
}

func (s *mongoStore) Delete(ctx context.Context, id Id) error {
	s.cache.Delete(id)
	deleted, err := s.collection.DeleteOne(ctx, id)
	if err != nil {
		return errors.Wrap(err, "error deleting request")
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoStore) UpdateStatus(ctx context.Context, id Id, status Status, errorReason string) error {
	return s.update(ctx, id, bson.M{
		"status":       status,
		"error_reason": errorReason,
	})
}

func (s *mongoStore) Complete(ctx context.Context, id Id, results []messages.HashResult) error {
	return s.update(ctx, id, bson.M{
		"status":       StatusReady,
		"results":      results,
		"error_reason": "",
	})
}

func (s *mongoStore) update(ctx context.Context, id Id, set bson.M) error {
	set["updated_at"] = s.now()
	matched, err := s.collection.UpdateOne(ctx, id, set)
	if err != nil {
		return errors.Wrap(err, "error updating request")
	}
	if matched == 0 {
		return ErrNotFound
	}
	// the next Get reloads the document
	s.cache.Delete(id)
	return nil
}

type mongoCollection struct {
	c *mongo.Collection
}

func (m *mongoCollection) FindOne(ctx context.Context, id Id) (*Info, error) {
	var req Info
	err := m.c.FindOne(ctx, bson.M{"_id": id}).Decode(&req)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (m *mongoCollection) FindAll(ctx context.Context) ([]*Info, error) {
	cursor, err := m.c.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = cursor.Close(ctx) }()
	var result []*Info
	for cursor.Next(ctx) {
		var req Info
		if err := cursor.Decode(&req); err != nil {
			return nil, errors.Wrap(err, "error decoding request")
		}
		result = append(result, &req)
	}
	return result, cursor.Err()
}

func (m *mongoCollection) Insert(ctx context.Context, req *Info) error {
	_, err := m.c.InsertOne(ctx, req)
	if mongo.IsDuplicateKeyError(err) {
		return errDuplicateKey
	}
	return err
}

func (m *mongoCollection) Replace(ctx context.Context, req *Info) error {
	_, err := m.c.ReplaceOne(ctx, bson.M{"_id": req.ID}, req)
	return err
}

func (m *mongoCollection) DeleteOne(ctx context.Context, id Id) (int64, error) {
	result, err := m.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func (m *mongoCollection) UpdateOne(ctx context.Context, id Id, set bson.M) (int64, error) {
	result, err := m.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return 0, err
	}
	return result.MatchedCount, nil
}
