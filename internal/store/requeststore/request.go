package requeststore

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/ykhdr/rainbow-crack/pkg/messages"
)

type Status string

const (
	StatusNew        Status = "NEW"
	StatusInProgress Status = "IN_PROGRESS"
	StatusReady      Status = "READY"
	StatusError      Status = "ERROR"
)

type Id string

func NewId() Id {
	return Id(uuid.NewString())
}

var ErrNotFound = errors.New("request not found")

// Info is the state of one crack request as reported by the status endpoint.
type Info struct {
	ID          Id                    `json:"id" bson:"_id"`
	Status      Status                `json:"status" bson:"status"`
	Hashes      []string              `json:"hashes" bson:"hashes"`
	Results     []messages.HashResult `json:"results" bson:"results"`
	CreatedAt   time.Time             `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time             `json:"updatedAt" bson:"updated_at"`
	ErrorReason string                `json:"errorReason,omitempty" bson:"error_reason"`
}

func NewInfo(hashes []string, now time.Time) *Info {
	return &Info{
		ID:        NewId(),
		Status:    StatusNew,
		Hashes:    hashes,
		Results:   []messages.HashResult{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r *Info) Copy() *Info {
	cp := *r
	cp.Hashes = slices.Clone(r.Hashes)
	cp.Results = slices.Clone(r.Results)
	return &cp
}

// Finished reports whether the request reached a terminal status.
func (r *Info) Finished() bool {
	return r.Status == StatusReady || r.Status == StatusError
}

type RequestStore interface {
	Get(ctx context.Context, id Id) (*Info, error)
	List(ctx context.Context) ([]*Info, error)
	Save(ctx context.Context, req *Info) error
	Delete(ctx context.Context, id Id) error
	UpdateStatus(ctx context.Context, id Id, status Status, errorReason string) error
	Complete(ctx context.Context, id Id, results []messages.HashResult) error
}
