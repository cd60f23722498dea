package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/dulo/internal/client/models"
	"github.com/dmitrijs2005/dulo/internal/client/storage"
	"github.com/dmitrijs2005/dulo/internal/common"
	"github.com/dmitrijs2005/dulo/internal/logging"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000")

func newOCR(env *testEnv, dir string, extra ...storage.Sink) OCRService {
	return NewOCRService(OCRConfig{
		Client:       env.api,
		Jobs:         env.jobs,
		Owner:        env.store,
		DownloadDir:  dir,
		PollInterval: 5 * time.Millisecond,
		ExtraSinks:   extra,
		Log:          logging.Nop(),
	})
}

type recordingSink struct {
	mu   sync.Mutex
	objs []storage.Object
}

func (s *recordingSink) Save(_ context.Context, obj storage.Object) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objs = append(s.objs, obj)
	return "mem://" + obj.Owner + "/" + obj.Name, nil
}

func TestUpload_SendsMultipartAndRecordsJob(t *testing.T) {
	var form struct {
		fileType, engine, name string
		content                []byte
	}
	env := newEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ocr", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		form.fileType = r.FormValue("file-type")
		form.engine = r.FormValue("engine")
		f, hdr, err := r.FormFile("image")
		require.NoError(t, err)
		defer f.Close()
		form.name = hdr.Filename
		form.content, _ = io.ReadAll(f)
		writeJSON(w, http.StatusOK, map[string]any{
			"job_id": "j-1", "status": "queued", "position": 1, "eta_seconds": 10, "engine": "kolosalocr", "file_type": "pdf",
		})
	}))
	env.signIn(t)
	ocr := newOCR(env, t.TempDir())
	ctx := context.Background()

	sub, err := ocr.Upload(ctx, models.UploadFile{Name: "/tmp/receipt.png", Content: pngHeader},
		models.OCROptions{FileType: models.FileTypePDF, Engine: "KolosalOCR"})
	require.NoError(t, err)
	assert.Equal(t, "j-1", sub.JobID)

	assert.Equal(t, "pdf", form.fileType)
	assert.Equal(t, "kolosalocr", form.engine)
	assert.Equal(t, "receipt.png", form.name)
	assert.Equal(t, pngHeader, form.content)

	rec, err := env.jobs.Get(ctx, "j-1")
	require.NoError(t, err)
	assert.Equal(t, "receipt.png", rec.Title)
	assert.Equal(t, models.JobQueued, rec.Status)
	assert.Equal(t, models.FileTypePDF, rec.FileType)
}

func TestUpload_ValidatesBeforeNetwork(t *testing.T) {
	var calls atomic.Int32
	env := newEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls.Add(1) }))
	ocr := newOCR(env, t.TempDir())
	ctx := context.Background()
	img := models.UploadFile{Name: "a.png", Content: pngHeader}

	_, err := ocr.Upload(ctx, img, models.OCROptions{FileType: "docx"})
	assert.ErrorIs(t, err, common.ErrInvalidFileType)

	_, err = ocr.Upload(ctx, img, models.OCROptions{FileType: models.FileTypePDF, Engine: "gpt"})
	assert.ErrorIs(t, err, common.ErrValidation)

	big := models.UploadFile{Name: "big.png", Content: bytes.Repeat([]byte{1}, MaxImageSize+1)}
	_, err = ocr.Upload(ctx, big, models.OCROptions{FileType: models.FileTypePDF})
	assert.ErrorIs(t, err, common.ErrFileTooLarge)

	_, err = ocr.UploadBatch(ctx, nil, models.OCROptions{FileType: models.FileTypePDF})
	assert.ErrorIs(t, err, common.ErrNoFiles)

	many := make([]models.UploadFile, MaxBatchSize+1)
	_, err = ocr.UploadBatch(ctx, many, models.OCROptions{FileType: models.FileTypePDF})
	assert.ErrorIs(t, err, common.ErrTooManyFiles)

	_, err = ocr.UploadDirect(ctx, img, models.OCROptions{FileType: "txt"}, "")
	assert.ErrorIs(t, err, common.ErrInvalidFileType)

	assert.Zero(t, calls.Load())
}

func TestUploadBatch_RepeatsImagesField(t *testing.T) {
	var names []string
	var invoice string
	env := newEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ocr/batch", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		for _, h := range r.MultipartForm.File["images"] {
			names = append(names, h.Filename)
		}
		invoice = r.FormValue("invoice")
		writeJSON(w, http.StatusOK, map[string]any{"job_id": "b-1", "status": "queued", "valid_images": 3})
	}))
	env.signIn(t)
	ocr := newOCR(env, t.TempDir())

	files := []models.UploadFile{
		{Name: "p1.png", Content: pngHeader}, {Name: "p2.png", Content: pngHeader}, {Name: "p3.png", Content: pngHeader},
	}
	sub, err := ocr.UploadBatch(context.Background(), files, models.OCROptions{FileType: models.FileTypeExcel, Invoice: true})
	require.NoError(t, err)
	assert.Equal(t, 3, sub.ValidImages)
	assert.Equal(t, models.FileTypeExcel, sub.FileType)
	assert.Equal(t, []string{"p1.png", "p2.png", "p3.png"}, names)
	assert.Equal(t, "true", invoice)

	rec, err := env.jobs.Get(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Equal(t, "p1.png (+2 more)", rec.Title)
}

func TestTakeJob_FailedJobIsAValue(t *testing.T) {
	env := newEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/take/j 1":
			writeJSON(w, http.StatusInternalServerError, map[string]any{"job_id": "j 1", "status": "failed", "error": "OCR engine crashed"})
		case "/take/gone":
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "job not found"})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Unknown job status"})
		}
	}))
	env.signIn(t)
	ocr := newOCR(env, t.TempDir())
	ctx := context.Background()

	job, err := ocr.TakeJob(ctx, "j 1")
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, job.Status)
	assert.Equal(t, "OCR engine crashed", job.Error)

	_, err = ocr.TakeJob(ctx, "gone")
	require.Error(t, err)
	assert.True(t, IsJobNotFound(err))
	assert.Contains(t, err.Error(), "job not found")

	_, err = ocr.TakeJob(ctx, "weird")
	assert.ErrorContains(t, err, "Unknown job status")
}

func TestWaitForJob_PollsUntilDone(t *testing.T) {
	statuses := []string{"queued", "processing", "formatting", "done"}
	var n atomic.Int32
	env := newEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i := int(n.Add(1)) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		body := map[string]any{"job_id": "j-1", "status": statuses[i], "file_type": "pdf"}
		if statuses[i] == "done" {
			body["download_url"] = "/download/j-1.pdf"
			body["chat_id"] = "c-1"
		}
		writeJSON(w, http.StatusOK, body)
	}))
	env.signIn(t)
	ocr := newOCR(env, t.TempDir())
	ctx := context.Background()
	require.NoError(t, env.jobs.Upsert(ctx, &models.JobRecord{JobID: "j-1", Title: "scan.png"}))

	var seen []models.JobStatus
	job, err := ocr.WaitForJob(ctx, "j-1", func(j models.Job) { seen = append(seen, j.Status) })
	require.NoError(t, err)
	assert.Equal(t, models.JobDone, job.Status)
	assert.Equal(t, []models.JobStatus{models.JobQueued, models.JobProcessing, models.JobFormatting, models.JobDone}, seen)

	rec, err := env.jobs.Get(ctx, "j-1")
	require.NoError(t, err)
	assert.Equal(t, "scan.png", rec.Title)
	assert.Equal(t, models.JobDone, rec.Status)
	assert.Equal(t, "/download/j-1.pdf", rec.DownloadURL)
	assert.Equal(t, "c-1", rec.ChatID)
}

func TestWaitForJob_StopsOnCancel(t *testing.T) {
	env := newEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"job_id": "j", "status": "queued"})
	}))
	env.signIn(t)
	ocr := newOCR(env, t.TempDir())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := ocr.WaitForJob(ctx, "j", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDownloadJob_SavesLocallyAndToExtraSinks(t *testing.T) {
	env := newEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/take/j-1":
			writeJSON(w, http.StatusOK, map[string]any{"job_id": "j-1", "status": "done", "download_url": "/download/j-1.pdf"})
		case "/download/j-1.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.7"))
		default:
			http.NotFound(w, r)
		}
	}))
	env.signIn(t)
	require.NoError(t, env.store.SaveUser(context.Background(), &models.StoredUser{Username: "ada"}))
	sink := &recordingSink{}
	dir := filepath.Join(t.TempDir(), "dl")
	ocr := newOCR(env, dir, sink)
	ctx := context.Background()

	file, err := ocr.DownloadJob(ctx, "j-1", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "j-1.pdf"), file.LocalPath)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.Equal(t, []string{file.LocalPath, "mem://ada/j-1.pdf"}, file.Locations)

	data, err := os.ReadFile(file.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(data))

	require.Len(t, sink.objs, 1)
	assert.Equal(t, "ada", sink.objs[0].Owner)

	rec, err := env.jobs.Get(ctx, "j-1")
	require.NoError(t, err)
	assert.Equal(t, file.LocalPath, rec.LocalPath)
}

func TestDownloadJob_NotReady(t *testing.T) {
	env := newEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"job_id": "j", "status": "processing"})
	}))
	env.signIn(t)
	_, err := newOCR(env, t.TempDir()).DownloadJob(context.Background(), "j", "")
	assert.ErrorContains(t, err, "not ready")
}

func TestDownload_RejectsUnsafeNames(t *testing.T) {
	var calls atomic.Int32
	env := newEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls.Add(1) }))
	ocr := newOCR(env, t.TempDir())

	for _, u := range []string{"", "/download/..", "/download/a%2F..%2Fb", "/download/", `/download/a%5Cb`} {
		_, err := ocr.Download(context.Background(), u, "")
		assert.ErrorIs(t, err, common.ErrInvalidFilename, u)
	}
	assert.Zero(t, calls.Load())
}

func TestDownloadAll_FirstFailureWins(t *testing.T) {
	env := newEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/take/")
		switch {
		case strings.HasPrefix(r.URL.Path, "/download/"):
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("pdf:" + strings.TrimPrefix(r.URL.Path, "/download/")))
		case id == "bad":
			writeJSON(w, http.StatusInternalServerError, map[string]any{"job_id": id, "status": "failed", "error": "unreadable"})
		default:
			writeJSON(w, http.StatusOK, map[string]any{"job_id": id, "status": "done", "download_url": fmt.Sprintf("/download/%s.pdf", id)})
		}
	}))
	env.signIn(t)
	dir := t.TempDir()
	ocr := newOCR(env, dir)
	ctx := context.Background()

	files, err := ocr.DownloadAll(ctx, []string{"a", "b", "c"}, "")
	require.NoError(t, err)
	require.Len(t, files, 3)
	for i, id := range []string{"a", "b", "c"} {
		assert.Equal(t, filepath.Join(dir, id+".pdf"), files[i].LocalPath)
	}

	_, err = ocr.DownloadAll(ctx, []string{"a", "bad"}, "")
	assert.ErrorContains(t, err, "job bad failed: unreadable")

	_, err = ocr.DownloadAll(ctx, nil, "")
	assert.True(t, errors.Is(err, common.ErrNoFiles))
}

func TestUploadDirect_UsesAttachmentName(t *testing.T) {
	env := newEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ocr/direct", r.URL.Path)
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="ocr_result.xlsx"`)
		_, _ = w.Write([]byte("PK"))
	}))
	env.signIn(t)
	dir := t.TempDir()
	ocr := newOCR(env, dir)

	file, err := ocr.UploadDirect(context.Background(), models.UploadFile{Name: "page.jpg", Content: pngHeader},
		models.OCROptions{FileType: models.FileTypeExcel}, "")
	require.NoError(t, err)
	assert.Equal(t, "ocr_result.xlsx", file.Name)
	assert.Equal(t, filepath.Join(dir, "ocr_result.xlsx"), file.LocalPath)
	assert.Equal(t, 2, file.Size)
}

func TestUploadDirect_FallbackName(t *testing.T) {
	env := newEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("%PDF-1.4\n"))
	}))
	env.signIn(t)
	dir := t.TempDir()

	file, err := newOCR(env, dir).UploadDirect(context.Background(), models.UploadFile{Name: "dir/page.jpg", Content: pngHeader},
		models.OCROptions{FileType: models.FileTypePDF}, "")
	require.NoError(t, err)
	assert.Equal(t, "page.pdf", file.Name)
	assert.Equal(t, "application/pdf", file.ContentType)
}

func TestHistory_FiltersAndValidates(t *testing.T) {
	env := newEnv(t, http.NotFoundHandler())
	ocr := newOCR(env, t.TempDir())
	ctx := context.Background()

	base := time.UnixMilli(1_700_000_000_000)
	require.NoError(t, env.jobs.Upsert(ctx, &models.JobRecord{JobID: "1", Title: "Invoice", FileType: models.FileTypePDF, CreatedAt: base}))
	require.NoError(t, env.jobs.Upsert(ctx, &models.JobRecord{JobID: "2", Title: "invoice 2", FileType: models.FileTypeExcel, CreatedAt: base.Add(time.Second)}))

	recs, err := ocr.History(ctx, models.JobQuery{Search: "invoice", FileType: models.FileTypeExcel})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "2", recs[0].JobID)

	_, err = ocr.History(ctx, models.JobQuery{FileType: "docx"})
	assert.ErrorIs(t, err, common.ErrInvalidFileType)
}

func TestForgetJob(t *testing.T) {
	env := newEnv(t, http.NotFoundHandler())
	ocr := newOCR(env, t.TempDir())
	ctx := context.Background()

	require.NoError(t, env.jobs.Upsert(ctx, &models.JobRecord{JobID: "1", Title: "Invoice", FileType: models.FileTypePDF}))

	rec, err := ocr.ForgetJob(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Invoice", rec.Title)

	recs, err := ocr.History(ctx, models.JobQuery{})
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = ocr.ForgetJob(ctx, "1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
