package services

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/dulo/internal/client/client"
	"github.com/dmitrijs2005/dulo/internal/client/models"
	"github.com/dmitrijs2005/dulo/internal/client/repositories/jobs"
	"github.com/dmitrijs2005/dulo/internal/client/storage"
	"github.com/dmitrijs2005/dulo/internal/common"
	"github.com/dmitrijs2005/dulo/internal/filex"
	"github.com/dmitrijs2005/dulo/internal/logging"
	"github.com/dmitrijs2005/dulo/internal/netx"
)

const (
	// MaxImageSize is the backend's per-image upload limit.
	MaxImageSize = 2 * 1024 * 1024
	// MaxBatchSize is the backend's per-batch image limit.
	MaxBatchSize = 100

	downloadWorkers = 4
)

// Engines accepted by the backend.
var Engines = []string{"kolosalocr", "paddleocr"}

// OCRService submits images for recognition, follows jobs and fetches the
// converted output.
type OCRService interface {
	Upload(ctx context.Context, file models.UploadFile, opts models.OCROptions) (*models.JobSubmission, error)
	UploadBatch(ctx context.Context, files []models.UploadFile, opts models.OCROptions) (*models.JobSubmission, error)
	UploadDirect(ctx context.Context, file models.UploadFile, opts models.OCROptions, dir string) (*models.DownloadedFile, error)
	TakeJob(ctx context.Context, jobID string) (*models.Job, error)
	WaitForJob(ctx context.Context, jobID string, onUpdate func(models.Job)) (*models.Job, error)
	Download(ctx context.Context, downloadURL, dir string) (*models.DownloadedFile, error)
	DownloadJob(ctx context.Context, jobID, dir string) (*models.DownloadedFile, error)
	DownloadAll(ctx context.Context, jobIDs []string, dir string) ([]models.DownloadedFile, error)
	History(ctx context.Context, q models.JobQuery) ([]models.JobRecord, error)
	ForgetJob(ctx context.Context, jobID string) (*models.JobRecord, error)
}

// Owner identifies the signed-in user for remote sink keys.
type Owner interface {
	User(ctx context.Context) *models.StoredUser
}

type ocrService struct {
	client       client.Client
	jobs         jobs.Repository
	owner        Owner
	sinks        []storage.Sink
	downloadDir  string
	pollInterval time.Duration
	log          logging.Logger
}

// OCRConfig groups the OCR service dependencies.
type OCRConfig struct {
	Client       client.Client
	Jobs         jobs.Repository
	Owner        Owner
	DownloadDir  string
	PollInterval time.Duration
	// ExtraSinks receive every downloaded file after the local copy.
	ExtraSinks []storage.Sink
	Log        logging.Logger
}

func NewOCRService(cfg OCRConfig) OCRService {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Log == nil {
		cfg.Log = logging.Nop()
	}
	return &ocrService{
		client:       cfg.Client,
		jobs:         cfg.Jobs,
		owner:        cfg.Owner,
		sinks:        cfg.ExtraSinks,
		downloadDir:  cfg.DownloadDir,
		pollInterval: cfg.PollInterval,
		log:          cfg.Log,
	}
}

func validateOptions(opts models.OCROptions) error {
	if err := validateFileType(opts.FileType); err != nil {
		return err
	}
	if opts.Engine == "" {
		return nil
	}
	for _, e := range Engines {
		if strings.EqualFold(opts.Engine, e) {
			return nil
		}
	}
	return invalid(fmt.Sprintf("engine must be one of: %s", strings.Join(Engines, ", ")))
}

func validateImage(f models.UploadFile) error {
	if len(f.Content) == 0 {
		return fmt.Errorf("%w: %s is empty", common.ErrValidation, f.Name)
	}
	if len(f.Content) > MaxImageSize {
		return fmt.Errorf("%w: %s", common.ErrFileTooLarge, f.Name)
	}
	return nil
}

func optionFields(opts models.OCROptions) map[string]string {
	fields := map[string]string{"file-type": string(opts.FileType)}
	if opts.Engine != "" {
		fields["engine"] = strings.ToLower(opts.Engine)
	}
	if opts.Language != "" {
		fields["language"] = opts.Language
	}
	if opts.Invoice {
		fields["invoice"] = "true"
	}
	if opts.AutoFix != nil {
		fields["auto_fix"] = strconv.FormatBool(*opts.AutoFix)
	}
	if opts.Enhanced {
		fields["use_enhanced"] = "true"
	}
	return fields
}

func (s *ocrService) post(ctx context.Context, p string, field string, files []models.UploadFile, opts models.OCROptions) (*client.Response, error) {
	parts := make([]netx.FormFile, 0, len(files))
	for _, f := range files {
		parts = append(parts, netx.FormFile{Field: field, Name: filepath.Base(f.Name), Content: f.Content})
	}
	body, contentType, err := netx.MultipartBody(optionFields(opts), parts)
	if err != nil {
		return nil, err
	}
	return s.client.Do(ctx, &client.Request{
		Method:      http.MethodPost,
		Path:        p,
		Body:        body,
		ContentType: contentType,
		Credentials: true,
	})
}

func (s *ocrService) Upload(ctx context.Context, file models.UploadFile, opts models.OCROptions) (*models.JobSubmission, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	if err := validateImage(file); err != nil {
		return nil, err
	}

	resp, err := s.post(ctx, "/ocr", "image", []models.UploadFile{file}, opts)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	return s.submitted(ctx, resp, filepath.Base(file.Name), opts)
}

func (s *ocrService) UploadBatch(ctx context.Context, files []models.UploadFile, opts models.OCROptions) (*models.JobSubmission, error) {
	if len(files) == 0 {
		return nil, common.ErrNoFiles
	}
	if len(files) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d images allowed", common.ErrTooManyFiles, MaxBatchSize)
	}
	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	for _, f := range files {
		if err := validateImage(f); err != nil {
			return nil, err
		}
	}

	resp, err := s.post(ctx, "/ocr/batch", "images", files, opts)
	if err != nil {
		return nil, fmt.Errorf("batch upload: %w", err)
	}

	title := filepath.Base(files[0].Name)
	if len(files) > 1 {
		title = fmt.Sprintf("%s (+%d more)", title, len(files)-1)
	}
	return s.submitted(ctx, resp, title, opts)
}

func (s *ocrService) submitted(ctx context.Context, resp *client.Response, title string, opts models.OCROptions) (*models.JobSubmission, error) {
	var sub models.JobSubmission
	if err := resp.Decode(&sub); err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	if sub.FileType == "" {
		sub.FileType = opts.FileType
	}

	rec := &models.JobRecord{
		JobID:    sub.JobID,
		Title:    title,
		FileType: sub.FileType,
		Engine:   sub.Engine,
		Status:   sub.Status,
	}
	if rec.Engine == "" {
		rec.Engine = strings.ToLower(opts.Engine)
	}
	if err := s.jobs.Upsert(ctx, rec); err != nil {
		s.log.Warn(ctx, "failed to record job", "job_id", sub.JobID, "error", err)
	}
	s.log.Info(ctx, "job submitted", "job_id", sub.JobID, "file_type", sub.FileType, "position", sub.Position)
	return &sub, nil
}

func (s *ocrService) UploadDirect(ctx context.Context, file models.UploadFile, opts models.OCROptions, dir string) (*models.DownloadedFile, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	if err := validateImage(file); err != nil {
		return nil, err
	}

	resp, err := s.post(ctx, "/ocr/direct", "image", []models.UploadFile{file}, opts)
	if err != nil {
		return nil, fmt.Errorf("direct upload: %w", err)
	}

	name := attachmentName(resp.Header.Get("Content-Disposition"))
	if name == "" {
		base := strings.TrimSuffix(filepath.Base(file.Name), filepath.Ext(file.Name))
		name = base + extension(opts.FileType)
	}
	return s.store(ctx, resp, name, dir)
}

// TakeJob fetches a job's status. A failed job comes back as a Job value;
// the backend reports it with HTTP 500.
func (s *ocrService) TakeJob(ctx context.Context, jobID string) (*models.Job, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, invalid("job id is required")
	}

	resp, err := s.client.Do(ctx, &client.Request{Method: http.MethodGet, Path: "/take/" + url.PathEscape(jobID)})
	if err != nil {
		if job := failedJob(resp, err); job != nil {
			return job, nil
		}
		return nil, fmt.Errorf("take job %s: %w", jobID, err)
	}

	var job models.Job
	if err := resp.Decode(&job); err != nil {
		return nil, fmt.Errorf("take job %s: %w", jobID, err)
	}
	if job.JobID == "" {
		job.JobID = jobID
	}
	return &job, nil
}

func failedJob(resp *client.Response, err error) *models.Job {
	if resp == nil || client.StatusOf(err) != http.StatusInternalServerError || !resp.IsJSON() {
		return nil
	}
	var job models.Job
	if resp.Decode(&job) != nil || job.Status != models.JobFailed {
		return nil
	}
	return &job
}

func (s *ocrService) WaitForJob(ctx context.Context, jobID string, onUpdate func(models.Job)) (*models.Job, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		job, err := s.TakeJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		s.record(ctx, job)
		if onUpdate != nil {
			onUpdate(*job)
		}
		if job.Status.Terminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *ocrService) record(ctx context.Context, job *models.Job) {
	rec := &models.JobRecord{
		JobID:         job.JobID,
		FileType:      job.FileType,
		Status:        job.Status,
		StatusMessage: job.StatusMessage,
		ChatID:        job.ChatID,
		DownloadURL:   job.DownloadURL,
		Error:         job.Error,
	}
	if err := s.jobs.Upsert(ctx, rec); err != nil {
		s.log.Warn(ctx, "failed to record job status", "job_id", job.JobID, "error", err)
	}
}

// Download fetches a converted file and stores it under dir, or the
// configured download directory when dir is empty.
func (s *ocrService) Download(ctx context.Context, downloadURL, dir string) (*models.DownloadedFile, error) {
	name, reqPath, err := downloadTarget(downloadURL)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(ctx, &client.Request{Method: http.MethodGet, Path: reqPath, Credentials: true})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", name, err)
	}
	return s.store(ctx, resp, name, dir)
}

func (s *ocrService) DownloadJob(ctx context.Context, jobID, dir string) (*models.DownloadedFile, error) {
	job, err := s.TakeJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	s.record(ctx, job)

	switch {
	case job.Status == models.JobFailed:
		return nil, fmt.Errorf("job %s failed: %s", jobID, job.Error)
	case job.Status != models.JobDone || job.DownloadURL == "":
		return nil, fmt.Errorf("job %s is not ready: %s", jobID, job.Status)
	}

	file, err := s.Download(ctx, job.DownloadURL, dir)
	if err != nil {
		return nil, err
	}
	if err := s.jobs.Upsert(ctx, &models.JobRecord{JobID: jobID, LocalPath: file.LocalPath}); err != nil {
		s.log.Warn(ctx, "failed to record local path", "job_id", jobID, "error", err)
	}
	return file, nil
}

// DownloadAll waits for every job and downloads its output concurrently.
// The first failure cancels the remaining work.
func (s *ocrService) DownloadAll(ctx context.Context, jobIDs []string, dir string) ([]models.DownloadedFile, error) {
	if len(jobIDs) == 0 {
		return nil, common.ErrNoFiles
	}

	out := make([]models.DownloadedFile, len(jobIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadWorkers)

	for i, id := range jobIDs {
		g.Go(func() error {
			job, err := s.WaitForJob(gctx, id, nil)
			if err != nil {
				return err
			}
			if job.Status == models.JobFailed {
				return fmt.Errorf("job %s failed: %s", id, job.Error)
			}
			file, err := s.DownloadJob(gctx, id, dir)
			if err != nil {
				return err
			}
			out[i] = *file
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ocrService) History(ctx context.Context, q models.JobQuery) ([]models.JobRecord, error) {
	if q.FileType != "" {
		if err := validateFileType(q.FileType); err != nil {
			return nil, err
		}
	}
	recs, err := s.jobs.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return recs, nil
}

// ForgetJob removes a job from the local history and returns what was
// removed. Downloaded files stay on disk.
func (s *ocrService) ForgetJob(ctx context.Context, jobID string) (*models.JobRecord, error) {
	rec, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("forget %s: %w", jobID, err)
	}
	if err := s.jobs.Delete(ctx, jobID); err != nil {
		return nil, fmt.Errorf("forget %s: %w", jobID, err)
	}
	s.log.Debug(ctx, "job removed from history", "job_id", jobID)
	return rec, nil
}

func (s *ocrService) store(ctx context.Context, resp *client.Response, name, dir string) (*models.DownloadedFile, error) {
	if dir == "" {
		dir = s.downloadDir
	}
	obj := storage.Object{
		Name:        name,
		ContentType: contentType(resp, name),
		Data:        resp.Body,
	}
	if s.owner != nil {
		if u := s.owner.User(ctx); u != nil {
			obj.Owner = u.Username
		}
	}

	sinks := append(storage.Multi{storage.NewLocalSink(dir)}, s.sinks...)
	locs, err := sinks.SaveAll(ctx, obj)
	if err != nil && len(locs) == 0 {
		return nil, err
	}
	if err != nil {
		s.log.Warn(ctx, "failed to copy download to remote storage", "file", name, "error", err)
	}

	s.log.Info(ctx, "file downloaded", "file", name, "bytes", len(obj.Data), "path", locs[0])
	return &models.DownloadedFile{
		Name:        name,
		ContentType: obj.ContentType,
		Size:        len(obj.Data),
		LocalPath:   locs[0],
		Locations:   locs,
	}, nil
}

// downloadTarget returns the local file name and the request path for a
// backend download_url such as /download/<filename>.
func downloadTarget(downloadURL string) (string, string, error) {
	raw := strings.TrimSpace(downloadURL)
	if raw == "" {
		return "", "", fmt.Errorf("%w: empty download url", common.ErrInvalidFilename)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", common.ErrInvalidFilename, err)
	}
	escaped := u.EscapedPath()
	last := escaped[strings.LastIndex(escaped, "/")+1:]
	name, err := url.PathUnescape(last)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", common.ErrInvalidFilename, err)
	}
	if name, err = filex.SafeName(name); err != nil {
		return "", "", err
	}

	if u.IsAbs() {
		return name, raw, nil
	}
	return name, path.Join("/download", url.PathEscape(name)), nil
}

func attachmentName(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	name, err := filex.SafeName(filepath.Base(params["filename"]))
	if err != nil {
		return ""
	}
	return name
}

func extension(ft models.FileType) string {
	if ft == models.FileTypeExcel {
		return ".xlsx"
	}
	return ".pdf"
}

func contentType(resp *client.Response, name string) string {
	if ct := resp.Header.Get(common.ContentTypeHeaderName); ct != "" && !strings.HasPrefix(ct, "application/octet-stream") {
		return ct
	}
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// IsJobNotFound reports whether err is the backend's 404 for an unknown or
// already collected job.
func IsJobNotFound(err error) bool {
	return client.StatusOf(err) == http.StatusNotFound || errors.Is(err, common.ErrorNotFound)
}
