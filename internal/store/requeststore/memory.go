package requeststore

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/ykhdr/rainbow-crack/pkg/messages"
)

type memoryStore struct {
	data *xsync.MapOf[Id, *Info]
	now  func() time.Time
}

func NewMemoryStore() RequestStore {
	return &memoryStore{
		data: xsync.NewMapOf[Id, *Info](),
		now:  time.Now,
	}
}

func (s *memoryStore) Get(_ context.Context, id Id) (*Info, error) {
	req, ok := s.data.Load(id)
	if !ok {
		return nil, ErrNotFound
	}
	return req.Copy(), nil
}

func (s *memoryStore) List(_ context.Context) ([]*Info, error) {
	result := make([]*Info, 0, s.data.Size())
	s.data.Range(func(_ Id, req *Info) bool {
		result = append(result, req.Copy())
		return true
	})
	return result, nil
}

func (s *memoryStore) Save(_ context.Context, req *Info) error {
	s.data.Store(req.ID, req.Copy())
	return nil
}

func (s *memoryStore) Delete(_ context.Context, id Id) error {
	if _, ok := s.data.LoadAndDelete(id); !ok {
		return ErrNotFound
	}
	return nil
}

func (s *memoryStore) UpdateStatus(_ context.Context, id Id, status Status, errorReason string) error {
	return s.update(id, func(req *Info) {
		req.Status = status
		req.ErrorReason = errorReason
	})
}

func (s *memoryStore) Complete(_ context.Context, id Id, results []messages.HashResult) error {
	return s.update(id, func(req *Info) {
		req.Status = StatusReady
		req.Results = results
		req.ErrorReason = ""
	})
}

func (s *memoryStore) update(id Id, mutate func(req *Info)) error {
	found := false
	s.data.Compute(id, func(old *Info, loaded bool) (*Info, bool) {
		if !loaded {
			return nil, true
		}
		found = true
		req := old.Copy()
		mutate(req)
		req.UpdatedAt = s.now()
		return req, false
	})
	if !found {
		return ErrNotFound
	}
	return nil
}
