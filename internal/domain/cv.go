package domain

import (
	"time"

	"github.com/google/uuid"
)

// CVRecord представляет запись о загруженном резюме сотрудника
type CVRecord struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	CollaboratorID string     `json:"collaborator_id" db:"collaborator_id"`
	FileName       string     `json:"file_name" db:"file_name"`
	StorageKey     string     `json:"storage_key" db:"storage_key"`
	ContentType    string     `json:"content_type" db:"content_type"`
	FileSizeBytes  int64      `json:"file_size_bytes" db:"file_size_bytes"`
	IsCurrent      bool       `json:"is_current" db:"is_current"`
	IsDeleted      bool       `json:"is_deleted" db:"is_deleted"`
	VersionLabel   *string    `json:"version_label,omitempty" db:"version_label"`
	Note           *string    `json:"note,omitempty" db:"note"`
	CreatedBy      string     `json:"created_by" db:"created_by"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedBy      *string    `json:"updated_by,omitempty" db:"updated_by"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty" db:"updated_at"`
	DeletedBy      *string    `json:"deleted_by,omitempty" db:"deleted_by"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// CVUpload содержит данные для загрузки нового резюме
type CVUpload struct {
	CollaboratorID string
	FileName       string
	ContentType    string
	SizeBytes      int64
	Data           []byte
	VersionLabel   *string
	Note           *string
	MakeCurrent    bool
}

// CVDownload содержит метаданные и содержимое резюме
type CVDownload struct {
	Record *CVRecord
	Data   []byte
}

// ActingUser представляет пользователя, выполняющего операцию.
// Передается явным параметром в каждый вызов сервиса, никогда
// не читается из глобального состояния.
type ActingUser struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles,omitempty"`
}

// AuditEntry представляет запись в журнале действий
type AuditEntry struct {
	ID             int64     `json:"id" db:"id"`
	CVID           uuid.UUID `json:"cv_id" db:"cv_id"`
	CollaboratorID string    `json:"collaborator_id" db:"collaborator_id"`
	Action         string    `json:"action" db:"action"`
	ActorID        string    `json:"actor_id" db:"actor_id"`
	Details        *string   `json:"details,omitempty" db:"details"`
	OccurredAt     time.Time `json:"occurred_at" db:"occurred_at"`
}

// Действия, фиксируемые в журнале
const (
	AuditActionUpload     = "upload"
	AuditActionReplace    = "replace"
	AuditActionSetCurrent = "set_current"
	AuditActionSoftDelete = "soft_delete"
)
