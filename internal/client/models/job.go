package models

import "time"

// FileType is the output format the backend converts OCR results into.
type FileType string

const (
	FileTypeExcel FileType = "excel"
	FileTypePDF   FileType = "pdf"
)

// Valid reports whether t is a format the backend accepts.
func (t FileType) Valid() bool {
	return t == FileTypeExcel || t == FileTypePDF
}

// JobStatus is the backend state of an OCR job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobFormatting JobStatus = "formatting"
	JobConverting JobStatus = "converting"
	JobDone       JobStatus = "done"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether polling can stop.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobFailed
}

// Job is one observation of /take/:jobId.
type Job struct {
	JobID         string    `json:"job_id"`
	Status        JobStatus `json:"status"`
	StatusMessage string    `json:"status_message,omitempty"`
	Position      *int      `json:"position,omitempty"`
	Progress      string    `json:"progress,omitempty"`
	ETASeconds    *float64  `json:"eta_seconds,omitempty"`
	FileType      FileType  `json:"file_type,omitempty"`
	DownloadURL   string    `json:"download_url,omitempty"`
	ChatID        string    `json:"chat_id,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// ImageError reports a batch image the backend skipped.
type ImageError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// JobSubmission is the answer of /ocr and /ocr/batch.
type JobSubmission struct {
	JobID        string       `json:"job_id"`
	Status       JobStatus    `json:"status"`
	Position     int          `json:"position"`
	ETASeconds   float64      `json:"eta_seconds"`
	Engine       string       `json:"engine,omitempty"`
	FileType     FileType     `json:"file_type,omitempty"`
	ValidImages  int          `json:"valid_images,omitempty"`
	EnhancedMode bool         `json:"enhanced_mode,omitempty"`
	Errors       []ImageError `json:"errors,omitempty"`
}

// OCROptions are the optional form fields of the upload endpoints.
// Empty values are not sent, leaving the backend defaults in place.
type OCROptions struct {
	FileType FileType
	Engine   string
	Language string
	Invoice  bool
	AutoFix  *bool
	Enhanced bool
}

// UploadFile is an image read into memory for upload.
type UploadFile struct {
	Name    string
	Content []byte
}

// DownloadedFile describes converted output saved by the client.
type DownloadedFile struct {
	Name        string
	ContentType string
	Size        int
	LocalPath   string
	Locations   []string
}

// JobRecord is the local history row for a submitted job.
type JobRecord struct {
	JobID         string
	Title         string
	FileType      FileType
	Engine        string
	Status        JobStatus
	StatusMessage string
	ChatID        string
	DownloadURL   string
	LocalPath     string
	Error         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SortOrder orders history by creation time.
type SortOrder string

const (
	SortDesc SortOrder = "desc"
	SortAsc  SortOrder = "asc"
)

// JobQuery filters the local job history.
type JobQuery struct {
	// Search is a case-insensitive substring of the title.
	Search string
	// FileType limits results to one format; empty means all.
	FileType FileType
	Order    SortOrder
	Limit    int
}
