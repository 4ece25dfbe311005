package upload

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"sosguard/internal/devices"
	"sosguard/internal/models"
	"sosguard/pkg/logger"
	"sosguard/pkg/storage"
)

type fakeBlobStore struct {
	mu       sync.Mutex
	requests []*storage.UploadRequest
	bodies   map[string][]byte
	failFor  string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{bodies: make(map[string][]byte)}
}

func (b *fakeBlobStore) Upload(ctx context.Context, request *storage.UploadRequest) (*storage.UploadResponse, error) {
	if b.failFor != "" && strings.Contains(request.Key, b.failFor) {
		return nil, errors.New("blob store rejected upload")
	}
	body, err := io.ReadAll(request.Reader)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.requests = append(b.requests, request)
	b.bodies[request.Key] = body
	b.mu.Unlock()
	return &storage.UploadResponse{
		Key:  request.Key,
		URL:  "https://evidence.test/" + request.Key,
		Size: request.Size,
	}, nil
}

type fakeArtifactRepo struct {
	mu      sync.Mutex
	created []*models.EvidenceArtifact
	err     error
}

func (r *fakeArtifactRepo) Create(ctx context.Context, artifact *models.EvidenceArtifact) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	r.created = append(r.created, artifact)
	r.mu.Unlock()
	return nil
}

func (r *fakeArtifactRepo) GetBySessionID(ctx context.Context, sessionID primitive.ObjectID) ([]*models.EvidenceArtifact, error) {
	return nil, nil
}

func (r *fakeArtifactRepo) GetByOwnerID(ctx context.Context, ownerID primitive.ObjectID) ([]*models.EvidenceArtifact, error) {
	return nil, nil
}

func writeClip(t *testing.T, name string, content string) *devices.Clip {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return &devices.Clip{
		Path:       path,
		Duration:   7 * time.Second,
		RecordedAt: time.Now(),
	}
}

func TestUploadWritesBlobAndMetadata(t *testing.T) {
	blobs := newFakeBlobStore()
	repo := &fakeArtifactRepo{}
	uploader := NewUploader(blobs, repo, logger.NewNop())

	ownerID := primitive.NewObjectID()
	sessionID := primitive.NewObjectID()
	clip := writeClip(t, "clip.mp4", "video bytes")

	doc, err := uploader.Upload(context.Background(), ownerID, sessionID, &LocalArtifact{
		Kind: models.MediaKindVideo,
		Clip: clip,
	})
	require.NoError(t, err)

	require.Len(t, blobs.requests, 1)
	request := blobs.requests[0]
	require.True(t, strings.HasPrefix(request.Key, "sos/"+ownerID.Hex()+"/"+sessionID.Hex()+"/video-"))
	require.Equal(t, "video/mp4", request.ContentType)
	require.Equal(t, sessionID.Hex(), request.Metadata["session_id"])
	require.Equal(t, []byte("video bytes"), blobs.bodies[request.Key])

	require.Len(t, repo.created, 1)
	require.Equal(t, doc, repo.created[0])
	require.Equal(t, models.MediaKindVideo, doc.Kind)
	require.Equal(t, sessionID, doc.SessionID)
	require.Equal(t, ownerID, doc.OwnerID)
	require.Equal(t, int64(len("video bytes")), doc.SizeBytes)
	require.Equal(t, int64(7), doc.DurationSeconds)
	require.Equal(t, request.Key, doc.StorageKey)
	require.Equal(t, "https://evidence.test/"+request.Key, doc.RemoteURL)
}

func TestUploadMissingFile(t *testing.T) {
	uploader := NewUploader(newFakeBlobStore(), &fakeArtifactRepo{}, logger.NewNop())

	_, err := uploader.Upload(context.Background(), primitive.NewObjectID(), primitive.NewObjectID(), &LocalArtifact{
		Kind: models.MediaKindAudio,
		Clip: &devices.Clip{Path: "/nonexistent/clip.m4a"},
	})
	require.Error(t, err)
}

func TestUploadBlobFailureSkipsMetadata(t *testing.T) {
	blobs := newFakeBlobStore()
	blobs.failFor = "audio"
	repo := &fakeArtifactRepo{}
	uploader := NewUploader(blobs, repo, logger.NewNop())

	_, err := uploader.Upload(context.Background(), primitive.NewObjectID(), primitive.NewObjectID(), &LocalArtifact{
		Kind: models.MediaKindAudio,
		Clip: writeClip(t, "clip.m4a", "audio bytes"),
	})
	require.Error(t, err)
	require.Empty(t, repo.created, "a failed blob upload must not leave metadata behind")
}

func TestUploadBatchIsolatesFailures(t *testing.T) {
	blobs := newFakeBlobStore()
	blobs.failFor = "audio"
	repo := &fakeArtifactRepo{}
	uploader := NewUploader(blobs, repo, logger.NewNop())

	uploaded := uploader.UploadBatch(context.Background(), primitive.NewObjectID(), primitive.NewObjectID(), []*LocalArtifact{
		{Kind: models.MediaKindAudio, Clip: writeClip(t, "clip.m4a", "audio bytes")},
		{Kind: models.MediaKindVideo, Clip: writeClip(t, "clip.mp4", "video bytes")},
		nil,
		{Kind: models.MediaKindVideo},
	})

	require.Len(t, uploaded, 1)
	require.Equal(t, models.MediaKindVideo, uploaded[0].Kind)
	require.Len(t, repo.created, 1)
}
