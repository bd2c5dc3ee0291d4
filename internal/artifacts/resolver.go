package artifacts

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
)

// Resolver answers whether an externally addressable artifact id exists.
// Upstream step outputs are resolved against the graph instead and never
// reach here.
type Resolver interface {
	Exists(ctx context.Context, artifactID string) (bool, error)
}

// ObjectStoreResolver resolves artifact ids to objects in the artifacts
// bucket, keyed by id.
type ObjectStoreResolver struct {
	client *minio.Client
	bucket string
}

func NewObjectStoreResolver(client *minio.Client, bucket string) (*ObjectStoreResolver, error) {
	if client == nil {
		return nil, errors.New("minio client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("artifacts bucket is required")
	}
	return &ObjectStoreResolver{client: client, bucket: bucket}, nil
}

func (r *ObjectStoreResolver) Exists(ctx context.Context, artifactID string) (bool, error) {
	artifactID = strings.TrimSpace(artifactID)
	if artifactID == "" {
		return false, nil
	}
	_, err := r.client.StatObject(ctx, r.bucket, artifactID, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// MemoryResolver is an in-process resolver for tests and the embedded client
// path.
type MemoryResolver struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

func NewMemoryResolver(ids ...string) *MemoryResolver {
	r := &MemoryResolver{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		r.ids[id] = struct{}{}
	}
	return r
}

func (r *MemoryResolver) Add(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[id] = struct{}{}
}

func (r *MemoryResolver) Exists(_ context.Context, artifactID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ids[artifactID]
	return ok, nil
}
