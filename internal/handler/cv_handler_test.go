package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt"

	"cvvault/internal/auth"
	"cvvault/internal/domain"
	"cvvault/internal/repository"
	"cvvault/internal/service"
	"cvvault/internal/service/s3"
	"cvvault/internal/storagekey"
)

const testSecret = "handler-test-secret"

// fakeBlob — хранилище байтов в памяти для тестов
type fakeBlob struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{objects: make(map[string][]byte)}
}

func (f *fakeBlob) UploadBytes(ctx context.Context, key string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = append([]byte(nil), data...)
	return nil
}

func (f *fakeBlob) GetObject(ctx context.Context, key string) (s3.S3Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", key)
	}
	return &fakeObject{ReadCloser: io.NopCloser(bytes.NewReader(data)), size: int64(len(data))}, nil
}

func (f *fakeBlob) DeleteObject(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

type fakeObject struct {
	io.ReadCloser
	size int64
}

func (o *fakeObject) ContentLength() int64 { return o.size }
func (o *fakeObject) ContentType() string  { return "application/pdf" }

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()

	auth.Init(testSecret)

	store := repository.NewMemoryCVStore()
	keys := storagekey.NewBuilder("collaborators", t.TempDir())
	cvService := service.NewCVService(store, newFakeBlob(), keys, nil)
	cvHandler := NewCVHandler(cvService)

	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Route("/collaborators/{collaboratorID}/cvs", func(r chi.Router) {
			r.Post("/", cvHandler.UploadCV)
			r.Get("/", cvHandler.ListCVs)
			r.Put("/{cvID}/current", cvHandler.SetCurrentCV)
		})

		r.Route("/cvs/{cvID}", func(r chi.Router) {
			r.Get("/", cvHandler.GetCV)
			r.Get("/download", cvHandler.DownloadCV)
			r.Post("/replace", cvHandler.ReplaceCV)
			r.Delete("/", cvHandler.DeleteCV)
		})
	})

	return r
}

func bearerToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "u1",
		"roles": []string{"hr"},
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return "Bearer " + signed
}

func multipartBody(t *testing.T, fileName string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("failed to write file content: %v", err)
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed to write field %s: %v", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	return body, writer.FormDataContentType()
}

func uploadCV(t *testing.T, router *chi.Mux, collaboratorID, fileName string, makeCurrent bool) domain.CVRecord {
	t.Helper()

	body, contentType := multipartBody(t, fileName, []byte("%PDF"), map[string]string{
		"make_current": fmt.Sprintf("%t", makeCurrent),
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/collaborators/"+collaboratorID+"/cvs", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearerToken(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("upload returned status %d: %s", rec.Code, rec.Body.String())
	}

	var record domain.CVRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("failed to decode upload response: %v", err)
	}
	return record
}

func listCVs(t *testing.T, router *chi.Mux, collaboratorID, query string) []domain.CVRecord {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/v1/collaborators/"+collaboratorID+"/cvs"+query, nil)
	req.Header.Set("Authorization", bearerToken(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("list returned status %d: %s", rec.Code, rec.Body.String())
	}

	var records []domain.CVRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("failed to decode list response: %v", err)
	}
	return records
}

func TestUploadRequiresAuthorization(t *testing.T) {
	router := newTestRouter(t)

	body, contentType := multipartBody(t, "cv.pdf", []byte("%PDF"), nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/collaborators/c1/cvs", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}

func TestUploadAndList(t *testing.T) {
	router := newTestRouter(t)

	record := uploadCV(t, router, "c1", "CV Mario Rossi 2024.pdf", true)
	if !record.IsCurrent {
		t.Error("uploaded record should be current")
	}
	if record.FileName != "CV Mario Rossi 2024.pdf" {
		t.Errorf("file name = %q", record.FileName)
	}

	records := listCVs(t, router, "c1", "")
	if len(records) != 1 || records[0].ID != record.ID {
		t.Fatalf("expected the uploaded record, got %d records", len(records))
	}
}

func TestSetCurrentAndDelete(t *testing.T) {
	router := newTestRouter(t)

	cv1 := uploadCV(t, router, "c1", "cv1.pdf", true)
	cv2 := uploadCV(t, router, "c1", "cv2.pdf", false)

	// Продвигаем второе резюме
	req := httptest.NewRequest(http.MethodPut, "/v1/collaborators/c1/cvs/"+cv2.ID.String()+"/current", nil)
	req.Header.Set("Authorization", bearerToken(t))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("set current returned status %d: %s", rec.Code, rec.Body.String())
	}

	current := listCVs(t, router, "c1", "?only_current=true")
	if len(current) != 1 || current[0].ID != cv2.ID {
		t.Fatalf("expected cv2 to be current, got %d records", len(current))
	}

	// Прежняя текущая запись переведена в исторические
	req = httptest.NewRequest(http.MethodGet, "/v1/cvs/"+cv1.ID.String(), nil)
	req.Header.Set("Authorization", bearerToken(t))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get returned status %d: %s", rec.Code, rec.Body.String())
	}
	var demoted domain.CVRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &demoted); err != nil {
		t.Fatalf("failed to decode get response: %v", err)
	}
	if demoted.IsCurrent {
		t.Error("cv1 should have been demoted")
	}

	// Удаляем текущее: замены не назначается
	req = httptest.NewRequest(http.MethodDelete, "/v1/cvs/"+cv2.ID.String(), nil)
	req.Header.Set("Authorization", bearerToken(t))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete returned status %d: %s", rec.Code, rec.Body.String())
	}

	if got := listCVs(t, router, "c1", "?only_current=true"); len(got) != 0 {
		t.Errorf("expected zero current records after delete, got %d", len(got))
	}

	all := listCVs(t, router, "c1", "?include_deleted=true")
	if len(all) != 2 {
		t.Fatalf("expected 2 records with include_deleted, got %d", len(all))
	}

	// Повторное удаление дает 404
	req = httptest.NewRequest(http.MethodDelete, "/v1/cvs/"+cv2.ID.String(), nil)
	req.Header.Set("Authorization", bearerToken(t))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404 on double delete, got %d", rec.Code)
	}

	// Удаленную запись нельзя сделать текущей
	req = httptest.NewRequest(http.MethodPut, "/v1/collaborators/c1/cvs/"+cv2.ID.String()+"/current", nil)
	req.Header.Set("Authorization", bearerToken(t))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404 promoting a deleted record, got %d", rec.Code)
	}
}

func TestReplaceEndpoint(t *testing.T) {
	router := newTestRouter(t)

	cv1 := uploadCV(t, router, "c1", "cv1.pdf", true)

	body, contentType := multipartBody(t, "cv2.pdf", []byte("%PDF-2"), nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/cvs/"+cv1.ID.String()+"/replace", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearerToken(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("replace returned status %d: %s", rec.Code, rec.Body.String())
	}

	var replacement domain.CVRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &replacement); err != nil {
		t.Fatalf("failed to decode replace response: %v", err)
	}
	if replacement.CollaboratorID != "c1" || !replacement.IsCurrent {
		t.Error("replacement should be current and belong to c1")
	}

	records := listCVs(t, router, "c1", "")
	if len(records) != 2 {
		t.Fatalf("expected 2 records after replace, got %d", len(records))
	}
}

func TestDownloadEndpoint(t *testing.T) {
	router := newTestRouter(t)

	record := uploadCV(t, router, "c1", "cv.pdf", true)

	req := httptest.NewRequest(http.MethodGet, "/v1/cvs/"+record.ID.String()+"/download", nil)
	req.Header.Set("Authorization", bearerToken(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("download returned status %d: %s", rec.Code, rec.Body.String())
	}
	if !bytes.Equal(rec.Body.Bytes(), []byte("%PDF")) {
		t.Errorf("downloaded body = %q, want %q", rec.Body.String(), "%PDF")
	}
	if got := rec.Header().Get("Content-Disposition"); got == "" {
		t.Error("download should set Content-Disposition")
	}
}

func TestGetMissingCV(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/cvs/6ba7b810-9dad-11d1-80b4-00c04fd430c8", nil)
	req.Header.Set("Authorization", bearerToken(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}
