package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"cvvault/internal/auth"
	"cvvault/internal/domain"
	"cvvault/internal/service"
)

// Максимальный размер тела multipart-запроса
const maxUploadMemory = 32 << 20 // 32MB

type CVHandler struct {
	cvService *service.CVService
}

func NewCVHandler(cvService *service.CVService) *CVHandler {
	return &CVHandler{cvService: cvService}
}

// UploadCV обрабатывает загрузку нового резюме сотрудника
func (h *CVHandler) UploadCV(w http.ResponseWriter, r *http.Request) {
	// Проверяем авторизацию
	actor, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	collaboratorID := chi.URLParam(r, "collaboratorID")

	upload, err := parseUploadForm(r, collaboratorID)
	if err != nil {
		log.Printf("Failed to parse upload form: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	record, err := h.cvService.UploadNew(r.Context(), *upload, actor)
	if err != nil {
		writeError(w, "Failed to upload cv", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(record)
}

// ListCVs обрабатывает запрос списка резюме сотрудника
func (h *CVHandler) ListCVs(w http.ResponseWriter, r *http.Request) {
	// Проверяем авторизацию
	if _, err := auth.VerifyToken(r); err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	collaboratorID := chi.URLParam(r, "collaboratorID")
	includeDeleted, _ := strconv.ParseBool(r.URL.Query().Get("include_deleted"))
	onlyCurrent, _ := strconv.ParseBool(r.URL.Query().Get("only_current"))

	records, err := h.cvService.ListByCollaborator(r.Context(), collaboratorID, includeDeleted, onlyCurrent)
	if err != nil {
		writeError(w, "Failed to list cvs", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

// SetCurrentCV обрабатывает запрос на продвижение резюме в текущие
func (h *CVHandler) SetCurrentCV(w http.ResponseWriter, r *http.Request) {
	// Проверяем авторизацию
	actor, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	collaboratorID := chi.URLParam(r, "collaboratorID")

	cvID, err := uuid.Parse(chi.URLParam(r, "cvID"))
	if err != nil {
		http.Error(w, "Invalid cv id", http.StatusBadRequest)
		return
	}

	if err := h.cvService.SetAsCurrent(r.Context(), collaboratorID, cvID, actor); err != nil {
		writeError(w, "Failed to set current cv", err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// ReplaceCV обрабатывает загрузку преемника существующего резюме
func (h *CVHandler) ReplaceCV(w http.ResponseWriter, r *http.Request) {
	// Проверяем авторизацию
	actor, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	cvID, err := uuid.Parse(chi.URLParam(r, "cvID"))
	if err != nil {
		http.Error(w, "Invalid cv id", http.StatusBadRequest)
		return
	}

	// Сотрудника определяет заменяемая запись
	upload, err := parseUploadForm(r, "")
	if err != nil {
		log.Printf("Failed to parse upload form: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	record, err := h.cvService.Replace(r.Context(), cvID, *upload, actor)
	if err != nil {
		writeError(w, "Failed to replace cv", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(record)
}

// DeleteCV обрабатывает логическое удаление резюме
func (h *CVHandler) DeleteCV(w http.ResponseWriter, r *http.Request) {
	// Проверяем авторизацию
	actor, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	cvID, err := uuid.Parse(chi.URLParam(r, "cvID"))
	if err != nil {
		http.Error(w, "Invalid cv id", http.StatusBadRequest)
		return
	}

	if err := h.cvService.SoftDelete(r.Context(), cvID, actor); err != nil {
		writeError(w, "Failed to delete cv", err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// GetCV обрабатывает запрос метаданных резюме
func (h *CVHandler) GetCV(w http.ResponseWriter, r *http.Request) {
	// Проверяем авторизацию
	if _, err := auth.VerifyToken(r); err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	cvID, err := uuid.Parse(chi.URLParam(r, "cvID"))
	if err != nil {
		http.Error(w, "Invalid cv id", http.StatusBadRequest)
		return
	}

	record, err := h.cvService.GetByID(r.Context(), cvID)
	if err != nil {
		writeError(w, "Failed to get cv", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

// DownloadCV обрабатывает скачивание файла резюме
func (h *CVHandler) DownloadCV(w http.ResponseWriter, r *http.Request) {
	// Проверяем авторизацию
	if _, err := auth.VerifyToken(r); err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	cvID, err := uuid.Parse(chi.URLParam(r, "cvID"))
	if err != nil {
		http.Error(w, "Invalid cv id", http.StatusBadRequest)
		return
	}

	download, err := h.cvService.Download(r.Context(), cvID)
	if err != nil {
		writeError(w, "Failed to download cv", err)
		return
	}

	w.Header().Set("Content-Type", download.Record.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Record.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(download.Data)))
	w.Write(download.Data)
}

// parseUploadForm читает multipart-форму загрузки резюме
func parseUploadForm(r *http.Request, collaboratorID string) (*domain.CVUpload, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return nil, fmt.Errorf("failed to parse multipart form: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("failed to get file from form: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	makeCurrent, _ := strconv.ParseBool(r.FormValue("make_current"))

	upload := &domain.CVUpload{
		CollaboratorID: collaboratorID,
		FileName:       header.Filename,
		ContentType:    contentType,
		SizeBytes:      header.Size,
		Data:           data,
		MakeCurrent:    makeCurrent,
	}

	if label := r.FormValue("version_label"); label != "" {
		upload.VersionLabel = &label
	}
	if note := r.FormValue("note"); note != "" {
		upload.Note = &note
	}

	return upload, nil
}

// writeError сопоставляет доменные ошибки с HTTP-статусами
func writeError(w http.ResponseWriter, msg string, err error) {
	log.Printf("%s: %v", msg, err)

	switch {
	case errors.Is(err, domain.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, msg, http.StatusNotFound)
	case errors.Is(err, domain.ErrConflict):
		http.Error(w, msg, http.StatusConflict)
	case errors.Is(err, domain.ErrStorage):
		http.Error(w, msg, http.StatusBadGateway)
	default:
		http.Error(w, msg, http.StatusInternalServerError)
	}
}
