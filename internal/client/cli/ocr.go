package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/dulo/internal/client/models"
	"github.com/dmitrijs2005/dulo/internal/client/services"
	"github.com/dmitrijs2005/dulo/internal/common"
)

// readFile is a test seam for os.ReadFile.
var readFile = os.ReadFile

func parseFileType(s string) (models.FileType, error) {
	if s == "" {
		return models.FileTypePDF, nil
	}
	ft := models.FileType(strings.ToLower(s))
	if !ft.Valid() {
		return "", fmt.Errorf("%w: use pdf or excel", common.ErrInvalidFileType)
	}
	return ft, nil
}

func ocrOptions(ft models.FileType, opts map[string]string) models.OCROptions {
	o := models.OCROptions{
		FileType: ft,
		Engine:   opts["engine"],
		Language: opts["lang"],
	}
	_, o.Invoice = opts["invoice"]
	_, o.Enhanced = opts["enhanced"]
	if _, ok := opts["no-autofix"]; ok {
		off := false
		o.AutoFix = &off
	}
	return o
}

func loadImage(path string) (models.UploadFile, error) {
	data, err := readFile(path)
	if err != nil {
		return models.UploadFile{}, fmt.Errorf("read %s: %w", path, err)
	}
	return models.UploadFile{Name: path, Content: data}, nil
}

// Scan submits one image and prints the queued job.
func (a *App) Scan(ctx context.Context, args []string) error {
	pos, opts := splitArgs(args)
	if len(pos) == 0 || len(pos) > 2 {
		a.out.println("Usage: scan <file> [pdf|excel] [--engine kolosalocr|paddleocr] [--lang code] [--invoice] [--enhanced] [--no-autofix]")
		return nil
	}
	ft, err := parseFileType(at(pos, 1))
	if err != nil {
		return err
	}
	img, err := loadImage(pos[0])
	if err != nil {
		return err
	}

	sub, err := a.ocrService.Upload(ctx, img, ocrOptions(ft, opts))
	if err != nil {
		return err
	}
	a.printSubmission(sub)
	return nil
}

// Batch submits several images as one job.
func (a *App) Batch(ctx context.Context, args []string) error {
	pos, opts := splitArgs(args)
	if len(pos) < 2 {
		a.out.println("Usage: batch <pdf|excel> <files...>")
		return nil
	}
	ft, err := parseFileType(pos[0])
	if err != nil {
		return err
	}

	files := make([]models.UploadFile, 0, len(pos)-1)
	for _, p := range pos[1:] {
		img, err := loadImage(p)
		if err != nil {
			return err
		}
		files = append(files, img)
	}

	sub, err := a.ocrService.UploadBatch(ctx, files, ocrOptions(ft, opts))
	if err != nil {
		return err
	}
	a.printSubmission(sub)
	for _, e := range sub.Errors {
		a.out.hint("  image %d skipped: %s", e.Index, e.Error)
	}
	return nil
}

// Direct converts one image synchronously and saves the result.
func (a *App) Direct(ctx context.Context, args []string) error {
	pos, opts := splitArgs(args)
	if len(pos) == 0 || len(pos) > 2 {
		a.out.println("Usage: direct <file> [pdf|excel] [--dir path]")
		return nil
	}
	ft, err := parseFileType(at(pos, 1))
	if err != nil {
		return err
	}
	img, err := loadImage(pos[0])
	if err != nil {
		return err
	}

	file, err := a.ocrService.UploadDirect(ctx, img, ocrOptions(ft, opts), opts["dir"])
	if err != nil {
		return err
	}
	a.printDownload(file)
	return nil
}

func (a *App) Status(ctx context.Context, args []string) error {
	if len(args) != 1 {
		a.out.println("Usage: status <job>")
		return nil
	}
	job, err := a.ocrService.TakeJob(ctx, args[0])
	if err != nil {
		if services.IsJobNotFound(err) {
			return fmt.Errorf("job %s not found or already collected", args[0])
		}
		return err
	}
	a.printJob(job)
	return nil
}

// Wait follows a job until it is done or failed, printing each change.
func (a *App) Wait(ctx context.Context, args []string) error {
	if len(args) != 1 {
		a.out.println("Usage: wait <job>")
		return nil
	}

	var last string
	job, err := a.ocrService.WaitForJob(ctx, args[0], func(j models.Job) {
		line := describeJob(&j)
		if line != last {
			a.out.println(line)
			last = line
		}
	})
	if err != nil {
		return err
	}

	switch job.Status {
	case models.JobDone:
		a.out.ok("Job %s is done. Run 'download %s' to save the result.", job.JobID, job.JobID)
		if job.ChatID != "" {
			a.out.hint("Ask about it with 'chat %s'.", job.ChatID)
		}
	case models.JobFailed:
		return fmt.Errorf("job %s failed: %s", job.JobID, orDefault(job.Error, "unknown error"))
	}
	return nil
}

// Download saves the output of one or more finished jobs.
func (a *App) Download(ctx context.Context, args []string) error {
	ids, opts := splitArgs(args)
	if len(ids) == 0 {
		a.out.println("Usage: download <job...> [--dir path]")
		return nil
	}

	if len(ids) == 1 {
		file, err := a.ocrService.DownloadJob(ctx, ids[0], opts["dir"])
		if err != nil {
			return err
		}
		a.printDownload(file)
		return nil
	}

	files, err := a.ocrService.DownloadAll(ctx, ids, opts["dir"])
	if err != nil {
		return err
	}
	for i := range files {
		a.printDownload(&files[i])
	}
	return nil
}

// History lists locally recorded jobs, newest first unless --asc is given.
func (a *App) History(ctx context.Context, args []string) error {
	pos, opts := splitArgs(args)
	q := models.JobQuery{Search: strings.Join(pos, " "), Order: models.SortDesc}
	if _, ok := opts["asc"]; ok {
		q.Order = models.SortAsc
	}
	if t, ok := opts["type"]; ok {
		ft, err := parseFileType(t)
		if err != nil {
			return err
		}
		q.FileType = ft
	}

	recs, err := a.ocrService.History(ctx, q)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		a.out.println("No jobs found")
		return nil
	}

	tw := tabwriter.NewWriter(a.out.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tJOB\tTITLE\tTYPE\tSTATUS\tFILE")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.CreatedAt.Local().Format(time.DateTime), r.JobID, r.Title, r.FileType, r.Status, r.LocalPath)
	}
	return tw.Flush()
}

// Forget drops jobs from the local history.
func (a *App) Forget(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.out.println("Usage: forget <job...>")
		return nil
	}
	for _, id := range args {
		rec, err := a.ocrService.ForgetJob(ctx, id)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return fmt.Errorf("job %s is not in the history", id)
			}
			return err
		}
		title := rec.Title
		if title == "" {
			title = rec.JobID
		}
		a.out.ok("Removed %s from history", title)
	}
	return nil
}

func (a *App) printSubmission(sub *models.JobSubmission) {
	a.out.ok("Job %s submitted (%s)", sub.JobID, sub.Status)
	if sub.Position > 0 {
		a.out.printf("Queue position: %d, ETA %s\n", sub.Position, eta(sub.ETASeconds))
	}
	a.out.hint("Follow it with 'wait %s'.", sub.JobID)
}

func (a *App) printJob(job *models.Job) {
	a.out.println(describeJob(job))
	if job.DownloadURL != "" {
		a.out.printf("Download: %s\n", job.DownloadURL)
	}
	if job.ChatID != "" {
		a.out.printf("Chat:     %s\n", job.ChatID)
	}
}

func (a *App) printDownload(f *models.DownloadedFile) {
	a.out.ok("Saved %s (%d bytes) to %s", f.Name, f.Size, f.LocalPath)
	for _, loc := range f.Locations {
		if loc != f.LocalPath {
			a.out.hint("  copied to %s", loc)
		}
	}
}

func describeJob(j *models.Job) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", j.JobID, j.Status)
	if j.StatusMessage != "" {
		fmt.Fprintf(&b, " - %s", j.StatusMessage)
	}
	if j.Progress != "" {
		fmt.Fprintf(&b, " [%s]", j.Progress)
	}
	if j.Position != nil && *j.Position > 0 {
		fmt.Fprintf(&b, " (position %d", *j.Position)
		if j.ETASeconds != nil {
			fmt.Fprintf(&b, ", ETA %s", eta(*j.ETASeconds))
		}
		b.WriteString(")")
	}
	if j.Error != "" {
		fmt.Fprintf(&b, ": %s", j.Error)
	}
	return b.String()
}

func eta(seconds float64) string {
	return time.Duration(seconds * float64(time.Second)).Round(time.Second).String()
}

func at(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}
