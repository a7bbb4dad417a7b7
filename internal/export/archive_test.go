package export

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/codekids/quiz-backend/pkg/storage"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "unsupported", http.StatusMethodNotAllowed)
		return
	}
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.objects[r.URL.Path] = body
	f.mu.Unlock()
	w.Header().Set("ETag", `"etag"`)
	w.WriteHeader(http.StatusOK)
}

func TestArchiveUploadsResultJSON(t *testing.T) {
	backend := &fakeS3{objects: make(map[string][]byte)}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	store, err := storage.NewS3(context.Background(), storage.S3Config{
		Region:          "us-east-1",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		ResultsBucket:   "quiz-results",
		Endpoint:        srv.URL,
		UsePathStyle:    true,
	}, nil)
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}
	archive := NewArchive(store)
	id := uuid.New()
	result := testResult("Ava", 75)

	if err := archive.Export(context.Background(), id, result); err != nil {
		t.Fatalf("Export: %v", err)
	}
	key := "/quiz-results/results/2026-02-03/" + id.String() + ".json"
	body, ok := backend.objects[key]
	if !ok {
		t.Fatalf("object %s not uploaded; have %v", key, backend.objects)
	}
	var got struct {
		SessionID      string `json:"sessionId"`
		Score          int    `json:"score"`
		CompletionTime int    `json:"completionTime"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode archived object: %v", err)
	}
	if got.SessionID != id.String() || got.Score != 2 || got.CompletionTime != 75 {
		t.Fatalf("unexpected archived object %s", body)
	}

	url, err := archive.DownloadURL(context.Background(), id, result.Timestamp)
	if err != nil {
		t.Fatalf("DownloadURL: %v", err)
	}
	if !strings.Contains(url, "results/2026-02-03/"+id.String()+".json") || !strings.Contains(url, "X-Amz-Signature") {
		t.Fatalf("unexpected presigned url %s", url)
	}
}
