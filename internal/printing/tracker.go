package printing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warnain/backend/internal/serviceerror"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	MinCopies = 1
	MaxCopies = 10
)

const (
	opTrackerNew = "printing.tracker.new"
	opSubmit     = "printing.submit"
	opUpload     = "printing.print_upload"
	opListJobs   = "printing.list_jobs"
	opGetJob     = "printing.get_job"
	opCreateJob  = "printing.create_job"
	opUpdateJob  = "printing.update_job"
	opDeleteJob  = "printing.delete_job"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingDispatcher = errors.New("dispatcher is required")
	errMissingUploadDir  = errors.New("upload directory is required")
)

// FileDispatcher sends a file to a printer and reports the outcome.
type FileDispatcher interface {
	PrintFile(ctx context.Context, printerName, filePath string, copies int, title string) DispatchResult
}

// PrinterResolver supplies the printer used when a request names none.
type PrinterResolver interface {
	DefaultPrinter(ctx context.Context) (string, bool)
}

// JobNotifier is told about every stored job change.
type JobNotifier interface {
	JobChanged(job Job)
}

// JobObserver records job outcomes.
type JobObserver interface {
	JobSubmitted(printer string)
	JobFinished(status Status, elapsed time.Duration)
}

// TrackerConfig describes the dependencies of a Tracker.
type TrackerConfig struct {
	Database   *gorm.DB
	Dispatcher FileDispatcher
	Resolver   PrinterResolver
	UploadDir  string
	Clock      func() time.Time
	Logger     *zap.Logger
	Notifier   JobNotifier
	Observer   JobObserver
}

// Tracker records every print attempt as a Job that moves from pending to
// exactly one of completed or failed.
type Tracker struct {
	db         *gorm.DB
	dispatcher FileDispatcher
	resolver   PrinterResolver
	uploadDir  string
	clock      func() time.Time
	logger     *zap.Logger
	notifier   JobNotifier
	observer   JobObserver
}

// NewTracker constructs a Tracker.
func NewTracker(cfg TrackerConfig) (*Tracker, error) {
	if cfg.Database == nil {
		return nil, serviceerror.New(opTrackerNew, "missing_database", errMissingDatabase)
	}
	if cfg.Dispatcher == nil {
		return nil, serviceerror.New(opTrackerNew, "missing_dispatcher", errMissingDispatcher)
	}
	if strings.TrimSpace(cfg.UploadDir) == "" {
		return nil, serviceerror.New(opTrackerNew, "missing_upload_dir", errMissingUploadDir)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		db:         cfg.Database,
		dispatcher: cfg.Dispatcher,
		resolver:   cfg.Resolver,
		uploadDir:  cfg.UploadDir,
		clock:      clock,
		logger:     logger,
		notifier:   cfg.Notifier,
		observer:   cfg.Observer,
	}, nil
}

// SubmitRequest names the file to print and on whose behalf.
type SubmitRequest struct {
	UserID      uint
	PrinterName string
	FilePath    string
	Copies      int
	Title       string
}

// SubmitResult carries the stored job and the dispatcher's verdict.
type SubmitResult struct {
	Job      Job
	Dispatch DispatchResult
}

// ValidateCopies enforces the accepted copy range.
func ValidateCopies(operation string, copies int) error {
	if copies < MinCopies || copies > MaxCopies {
		return serviceerror.Invalid(operation, "invalid_copies", "copies must be between %d and %d", MinCopies, MaxCopies)
	}
	return nil
}

// ResolvePrinter returns requested when set, else the resolver's default.
func (t *Tracker) ResolvePrinter(ctx context.Context, operation, requested string) (string, error) {
	if name := strings.TrimSpace(requested); name != "" {
		return name, nil
	}
	if t.resolver != nil {
		if name, ok := t.resolver.DefaultPrinter(ctx); ok {
			return name, nil
		}
	}
	return "", serviceerror.Invalid(operation, "printer_unresolved", "printer name not found")
}

// Submit stores a pending job, dispatches the file, then records the outcome once.
func (t *Tracker) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if err := ValidateCopies(opSubmit, req.Copies); err != nil {
		return SubmitResult{}, err
	}
	printerName, err := t.ResolvePrinter(ctx, opSubmit, req.PrinterName)
	if err != nil {
		return SubmitResult{}, err
	}

	job := Job{
		UserID:      req.UserID,
		PrinterName: printerName,
		FilePath:    req.FilePath,
		Copies:      req.Copies,
		Status:      StatusPending,
	}
	if err := t.db.WithContext(ctx).Create(&job).Error; err != nil {
		t.logError(opSubmit, "insert_failed", err, zap.Uint("user_id", req.UserID))
		return SubmitResult{}, serviceerror.New(opSubmit, "insert_failed", err)
	}
	t.notify(job)
	if t.observer != nil {
		t.observer.JobSubmitted(printerName)
	}

	// The job is committed; the caller going away must not abort the print
	// or leave the row pending.
	dctx := context.WithoutCancel(ctx)

	started := t.clock()
	dispatch := t.dispatch(dctx, printerName, req)
	elapsed := t.clock().Sub(started)

	next := StatusCompleted
	errorMessage := ""
	if !dispatch.Success {
		next = StatusFailed
		errorMessage = dispatch.Message
	}
	metadata, err := json.Marshal(jobMetadata{
		Message:        dispatch.Message,
		SpoolerJobID:   dispatch.SpoolerJobID,
		DocumentFormat: dispatch.DocFormat,
		ElapsedMS:      elapsed.Milliseconds(),
	})
	if err != nil {
		t.logError(opSubmit, "metadata_failed", err, zap.Uint("job_id", job.ID))
		metadata = nil
	}

	result := t.db.WithContext(dctx).
		Model(&Job{}).
		Where("id = ? AND status = ?", job.ID, StatusPending).
		Updates(map[string]any{
			"status":         next,
			"error_message":  errorMessage,
			"spooler_job_id": dispatch.SpoolerJobID,
			"metadata":       datatypes.JSON(metadata),
		})
	if result.Error != nil {
		t.logError(opSubmit, "update_failed", result.Error, zap.Uint("job_id", job.ID))
		return SubmitResult{Job: job, Dispatch: dispatch}, serviceerror.New(opSubmit, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		err := fmt.Errorf("job %d left pending before dispatch finished", job.ID)
		t.logError(opSubmit, "transition_lost", err, zap.Uint("job_id", job.ID))
		return SubmitResult{Job: job, Dispatch: dispatch}, serviceerror.Conflict(opSubmit, "transition_lost", "%v", err)
	}

	job.Status = next
	job.ErrorMessage = errorMessage
	job.SpoolerJobID = dispatch.SpoolerJobID
	job.Metadata = datatypes.JSON(metadata)
	t.notify(job)
	if t.observer != nil {
		t.observer.JobFinished(next, elapsed)
	}
	return SubmitResult{Job: job, Dispatch: dispatch}, nil
}

type jobMetadata struct {
	Message        string `json:"message"`
	SpoolerJobID   int    `json:"spooler_job_id"`
	DocumentFormat string `json:"document_format"`
	ElapsedMS      int64  `json:"elapsed_ms"`
}

// dispatch turns a dispatcher panic into a failed result.
func (t *Tracker) dispatch(ctx context.Context, printerName string, req SubmitRequest) (result DispatchResult) {
	defer func() {
		if recovered := recover(); recovered != nil {
			t.logger.Error("print dispatch panicked",
				zap.String("operation", opSubmit),
				zap.String("printer", printerName),
				zap.Any("panic", recovered))
			result = DispatchResult{Message: fmt.Sprintf("Error printing file: %v", recovered)}
		}
	}()
	return t.dispatcher.PrintFile(ctx, printerName, req.FilePath, req.Copies, req.Title)
}

// UploadRequest is a temporary file to print once and discard.
type UploadRequest struct {
	UserID      uint
	PrinterName string
	Copies      int
	FileName    string
	Content     io.Reader
}

// PrintUpload stages the upload, submits it and removes the staged file on
// every exit path.
func (t *Tracker) PrintUpload(ctx context.Context, req UploadRequest) (SubmitResult, error) {
	if err := ValidateCopies(opUpload, req.Copies); err != nil {
		return SubmitResult{}, err
	}
	if req.Content == nil {
		return SubmitResult{}, serviceerror.Invalid(opUpload, "missing_image", "image is required")
	}
	printerName, err := t.ResolvePrinter(ctx, opUpload, req.PrinterName)
	if err != nil {
		return SubmitResult{}, err
	}

	stagedPath, err := t.stage(req.FileName, req.Content)
	if err != nil {
		t.logError(opUpload, "stage_failed", err)
		return SubmitResult{}, serviceerror.New(opUpload, "stage_failed", err)
	}
	defer t.cleanup(stagedPath)

	title := ""
	if base := filepath.Base(strings.TrimSpace(req.FileName)); base != "" && base != "." && base != string(filepath.Separator) {
		title = "Print job - " + base
	}
	return t.Submit(ctx, SubmitRequest{
		UserID:      req.UserID,
		PrinterName: printerName,
		FilePath:    stagedPath,
		Copies:      req.Copies,
		Title:       title,
	})
}

func (t *Tracker) stage(fileName string, content io.Reader) (string, error) {
	if err := os.MkdirAll(t.uploadDir, 0o700); err != nil {
		return "", err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	path := filepath.Join(t.uploadDir, id.String()+strings.ToLower(filepath.Ext(fileName)))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(file, content); err != nil {
		file.Close()
		os.Remove(path)
		return "", err
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func (t *Tracker) cleanup(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		t.logger.Warn("staged upload cleanup failed", zap.String("path", path), zap.Error(err))
	}
}

// ListJobs returns every job, newest first.
func (t *Tracker) ListJobs(ctx context.Context) ([]Job, error) {
	var jobs []Job
	if err := t.db.WithContext(ctx).Order("created_at desc").Order("id desc").Find(&jobs).Error; err != nil {
		t.logError(opListJobs, "select_failed", err)
		return nil, serviceerror.New(opListJobs, "select_failed", err)
	}
	return jobs, nil
}

// GetJob loads a job by id.
func (t *Tracker) GetJob(ctx context.Context, id uint) (Job, error) {
	var job Job
	err := t.db.WithContext(ctx).First(&job, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Job{}, serviceerror.NotFound(opGetJob, "job_not_found", "print job %d", id)
	}
	if err != nil {
		t.logError(opGetJob, "select_failed", err, zap.Uint("job_id", id))
		return Job{}, serviceerror.New(opGetJob, "select_failed", err)
	}
	return job, nil
}

// CreateJob stores a job record without dispatching it.
func (t *Tracker) CreateJob(ctx context.Context, job Job) (Job, error) {
	job.ID = 0
	job.User = nil
	if job.Status == "" {
		job.Status = StatusPending
	}
	if _, err := ParseStatus(string(job.Status)); err != nil {
		return Job{}, serviceerror.Invalid(opCreateJob, "invalid_status", "%v", err)
	}
	if strings.TrimSpace(job.PrinterName) == "" {
		return Job{}, serviceerror.Invalid(opCreateJob, "missing_printer", "printer name is required")
	}
	if job.Copies == 0 {
		job.Copies = MinCopies
	}
	if err := t.db.WithContext(ctx).Create(&job).Error; err != nil {
		t.logError(opCreateJob, "insert_failed", err)
		return Job{}, serviceerror.New(opCreateJob, "insert_failed", err)
	}
	t.notify(job)
	return job, nil
}

// JobPatch carries the fields to change on a job; nil leaves a field untouched.
type JobPatch struct {
	PrinterName  *string
	FilePath     *string
	Copies       *int
	Status       *Status
	ErrorMessage *string
}

// UpdateJob applies patch, rejecting transitions out of a terminal status.
func (t *Tracker) UpdateJob(ctx context.Context, id uint, patch JobPatch) (Job, error) {
	var job Job
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&job, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return serviceerror.NotFound(opUpdateJob, "job_not_found", "print job %d", id)
			}
			return err
		}
		if patch.Status != nil {
			if _, err := ParseStatus(string(*patch.Status)); err != nil {
				return serviceerror.Invalid(opUpdateJob, "invalid_status", "%v", err)
			}
			if err := ValidateTransition(job.Status, *patch.Status); err != nil {
				return serviceerror.Conflict(opUpdateJob, "invalid_transition", "%v", err)
			}
			job.Status = *patch.Status
		}
		if patch.PrinterName != nil {
			job.PrinterName = *patch.PrinterName
		}
		if patch.FilePath != nil {
			job.FilePath = *patch.FilePath
		}
		if patch.Copies != nil {
			job.Copies = *patch.Copies
		}
		if patch.ErrorMessage != nil {
			job.ErrorMessage = *patch.ErrorMessage
		}
		return tx.Save(&job).Error
	})
	if err != nil {
		var serviceErr *serviceerror.ServiceError
		if errors.As(err, &serviceErr) {
			return Job{}, err
		}
		t.logError(opUpdateJob, "update_failed", err, zap.Uint("job_id", id))
		return Job{}, serviceerror.New(opUpdateJob, "update_failed", err)
	}
	t.notify(job)
	return job, nil
}

// DeleteJob removes a job record.
func (t *Tracker) DeleteJob(ctx context.Context, id uint) error {
	result := t.db.WithContext(ctx).Delete(&Job{}, id)
	if result.Error != nil {
		t.logError(opDeleteJob, "delete_failed", result.Error, zap.Uint("job_id", id))
		return serviceerror.New(opDeleteJob, "delete_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return serviceerror.NotFound(opDeleteJob, "job_not_found", "print job %d", id)
	}
	return nil
}

func (t *Tracker) notify(job Job) {
	if t.notifier != nil {
		t.notifier.JobChanged(job)
	}
}

func (t *Tracker) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	t.logger.Error("print tracker error", attrs...)
}
