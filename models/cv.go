package models

import "time"

// CV is a stored résumé. Fragments hold redacted text only; the raw upload
// is never persisted.
type CV struct {
	ID              string         `bson:"_id" json:"id"`
	FileName        string         `bson:"file_name" json:"file_name"` // dd-mm-yyyy-<display_name>
	OriginalName    string         `bson:"original_name" json:"original_name"`
	DisplayName     string         `bson:"display_name" json:"display_name"`
	ContentHash     string         `bson:"content_hash" json:"content_hash"`
	Fragments       []Fragment     `bson:"fragments,omitempty" json:"fragments,omitempty"`
	FragmentCount   int            `bson:"fragment_count" json:"fragment_count"`
	Size            int64          `bson:"size" json:"size"`
	Pages           int            `bson:"pages" json:"pages"`
	RedactionCounts map[string]int `bson:"redaction_counts,omitempty" json:"redaction_counts,omitempty"`
	EmbeddingStatus string         `bson:"embedding_status" json:"embedding_status"` // pending, processing, completed, failed, rejected
	EmbeddingError  string         `bson:"embedding_error,omitempty" json:"embedding_error,omitempty"`
	EmbeddingTaskID string         `bson:"embedding_task_id,omitempty" json:"embedding_task_id,omitempty"`
	UploadedAt      time.Time      `bson:"uploaded_at" json:"uploaded_at"`
	EmbeddedAt      *time.Time     `bson:"embedded_at,omitempty" json:"embedded_at,omitempty"`
}

// Fragment is the redacted text of one extracted page.
type Fragment struct {
	Order     int    `bson:"order" json:"order"`
	Page      int    `bson:"page" json:"page"`
	Text      string `bson:"text" json:"text"`
	CharCount int    `bson:"char_count" json:"char_count"`
	WordCount int    `bson:"word_count" json:"word_count"`
}

// CVChunk is an embedded fragment, keyed by (cv_id, chunk_id).
type CVChunk struct {
	CVID      string    `bson:"cv_id" json:"cv_id"`
	ChunkID   string    `bson:"chunk_id" json:"chunk_id"`
	Order     int       `bson:"order" json:"order"`
	Page      int       `bson:"page" json:"page"`
	Text      string    `bson:"text" json:"text"`
	Vector    []float32 `bson:"vector" json:"-"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// CVStatus is the embedding progress of one CV.
type CVStatus struct {
	ID              string     `json:"id"`
	FileName        string     `json:"file_name"`
	EmbeddingStatus string     `json:"embedding_status"`
	EmbeddingError  string     `json:"embedding_error,omitempty"`
	FragmentCount   int        `json:"fragment_count"`
	UploadedAt      time.Time  `json:"uploaded_at"`
	EmbeddedAt      *time.Time `json:"embedded_at,omitempty"`
}

// UploadResponse is returned by POST /cvs.
type UploadResponse struct {
	ID              string         `json:"id"`
	FileName        string         `json:"file_name"`
	DisplayName     string         `json:"display_name"`
	ContentHash     string         `json:"content_hash"`
	FragmentCount   int            `json:"fragment_count"`
	Redactions      map[string]int `json:"redactions"`
	EmbeddingStatus string         `json:"embedding_status"`
	TaskID          string         `json:"task_id,omitempty"`
	Message         string         `json:"message"`
}

// CVListResponse is one page of GET /cvs.
type CVListResponse struct {
	CVs   []CV  `json:"cvs"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// ChunkStats summarizes stored chunks of one CV.
type ChunkStats struct {
	CVID       string `bson:"_id" json:"cv_id"`
	Chunks     int    `bson:"chunks" json:"chunks"`
	WithVector int    `bson:"with_vector" json:"with_vector"`
}

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	// StatusRejected is a permanent failure; the reconciler leaves it alone.
	StatusRejected = "rejected"
)

const (
	ExtractionMethodPoppler = "poppler"
	ExtractionMethodGoPDF   = "go-pdf"
)

// ToStatus projects the embedding fields of cv.
func (cv *CV) ToStatus() CVStatus {
	return CVStatus{
		ID:              cv.ID,
		FileName:        cv.FileName,
		EmbeddingStatus: cv.EmbeddingStatus,
		EmbeddingError:  cv.EmbeddingError,
		FragmentCount:   cv.FragmentCount,
		UploadedAt:      cv.UploadedAt,
		EmbeddedAt:      cv.EmbeddedAt,
	}
}
