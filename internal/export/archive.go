package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codekids/quiz-backend/internal/quiz"
	"github.com/codekids/quiz-backend/pkg/storage"
)

// Archive stores each result as a JSON object in the results bucket.
type Archive struct {
	store  *storage.S3
	bucket string
}

// NewArchive creates an S3 archive exporter.
func NewArchive(store *storage.S3) *Archive {
	return &Archive{store: store, bucket: store.ResultsBucket()}
}

func (a *Archive) Name() string { return "s3" }

// Export uploads results/{date}/{session_id}.json.
func (a *Archive) Export(ctx context.Context, sessionID uuid.UUID, result quiz.Result) error {
	data, err := json.Marshal(archivedResult{SessionID: sessionID, Result: result})
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	key := storage.ResultKey(result.Timestamp, sessionID.String())
	if _, err := a.store.Upload(ctx, a.bucket, key, "application/json", bytes.NewReader(data), int64(len(data))); err != nil {
		return err
	}
	return nil
}

// DownloadURL returns a pre-signed link to the result archived for a session completed at completedAt.
func (a *Archive) DownloadURL(ctx context.Context, sessionID uuid.UUID, completedAt time.Time) (string, error) {
	key := storage.ResultKey(completedAt, sessionID.String())
	return a.store.GeneratePresignedDownloadURL(ctx, a.bucket, key, a.store.PresignExpire())
}

type archivedResult struct {
	SessionID uuid.UUID `json:"sessionId"`
	quiz.Result
}
