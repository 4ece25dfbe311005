package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sosguard/internal/devices"
	"sosguard/internal/models"
	"sosguard/internal/repositories/interfaces"
	"sosguard/pkg/logger"
	"sosguard/pkg/storage"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LocalArtifact is a finished recording waiting to be uploaded.
type LocalArtifact struct {
	Kind models.MediaKind
	Clip *devices.Clip
}

// BlobStore is the slice of the storage provider the uploader needs.
type BlobStore interface {
	Upload(ctx context.Context, request *storage.UploadRequest) (*storage.UploadResponse, error)
}

// Uploader moves finished recordings to blob storage and persists their metadata.
// Each artifact is uploaded at most once; failures are not retried.
type Uploader struct {
	blobs     BlobStore
	artifacts interfaces.ArtifactRepository
	log       *logger.Logger
}

func NewUploader(blobs BlobStore, artifacts interfaces.ArtifactRepository, log *logger.Logger) *Uploader {
	return &Uploader{
		blobs:     blobs,
		artifacts: artifacts,
		log:       log,
	}
}

// Upload pushes one artifact to blob storage and writes its metadata document. The
// metadata shape is identical for batch and late uploads so consumers cannot tell
// them apart.
func (u *Uploader) Upload(ctx context.Context, ownerID, sessionID primitive.ObjectID, artifact *LocalArtifact) (*models.EvidenceArtifact, error) {
	file, err := os.Open(artifact.Clip.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s artifact: %w", artifact.Kind, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s artifact: %w", artifact.Kind, err)
	}

	ext := filepath.Ext(artifact.Clip.Path)
	key := fmt.Sprintf("sos/%s/%s/%s-%s%s",
		ownerID.Hex(), sessionID.Hex(), artifact.Kind, uuid.NewString(), ext)

	resp, err := u.blobs.Upload(ctx, &storage.UploadRequest{
		Key:         key,
		Reader:      file,
		ContentType: contentTypeFor(artifact.Kind, ext),
		Size:        info.Size(),
		Metadata: map[string]string{
			"session_id": sessionID.Hex(),
			"kind":       string(artifact.Kind),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s artifact: %w", artifact.Kind, err)
	}

	doc := &models.EvidenceArtifact{
		SessionID:       sessionID,
		OwnerID:         ownerID,
		Kind:            artifact.Kind,
		LocalPath:       artifact.Clip.Path,
		RemoteURL:       resp.URL,
		StorageKey:      resp.Key,
		SizeBytes:       info.Size(),
		DurationSeconds: durationSeconds(artifact.Clip),
		RecordedAt:      artifact.Clip.RecordedAt,
	}

	if err := u.artifacts.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to persist %s artifact metadata: %w", artifact.Kind, err)
	}

	u.log.WithSessionID(sessionID).
		WithField("kind", artifact.Kind).
		WithField("url", resp.URL).
		Info("Evidence artifact uploaded")

	return doc, nil
}

// UploadBatch attempts every artifact independently and returns whatever succeeded.
// One failed upload never aborts the rest.
func (u *Uploader) UploadBatch(ctx context.Context, ownerID, sessionID primitive.ObjectID, artifacts []*LocalArtifact) []*models.EvidenceArtifact {
	var (
		mu       sync.Mutex
		uploaded []*models.EvidenceArtifact
		wg       sync.WaitGroup
	)

	for _, artifact := range artifacts {
		if artifact == nil || artifact.Clip == nil {
			continue
		}
		wg.Add(1)
		go func(a *LocalArtifact) {
			defer wg.Done()
			doc, err := u.Upload(ctx, ownerID, sessionID, a)
			if err != nil {
				u.log.WithSessionID(sessionID).WithError(err).
					Errorf("Upload failed for %s artifact", a.Kind)
				return
			}
			mu.Lock()
			uploaded = append(uploaded, doc)
			mu.Unlock()
		}(artifact)
	}

	wg.Wait()
	return uploaded
}

func durationSeconds(clip *devices.Clip) int64 {
	if clip.Duration <= 0 {
		return 0
	}
	return int64(clip.Duration / time.Second)
}

func contentTypeFor(kind models.MediaKind, ext string) string {
	switch ext {
	case ".m4a", ".aac":
		return "audio/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		if kind == models.MediaKindAudio {
			return "audio/webm"
		}
		return "video/webm"
	}
	return "application/octet-stream"
}
