package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/export"
	"github.com/coursehub/coursehub-api/pkg/storage"
)

// ExportFormat selects the rendered output type.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ExportResult is a rendered document ready to stream to the client. When an
// archive is configured the document is also persisted and DownloadToken can
// fetch it again until ExpiresAt.
type ExportResult struct {
	FileName      string
	ContentType   string
	Body          []byte
	DownloadToken string
	ExpiresAt     *time.Time
}

type exportProfileSource interface {
	List(ctx context.Context, filter models.ProfileFilter) ([]models.Profile, int, error)
}

type exportChapterSource interface {
	List(ctx context.Context, filter models.ChapterFilter) ([]models.Chapter, error)
}

type exportFeedbackSource interface {
	List(ctx context.Context, filter models.FeedbackFilter) ([]models.Feedback, *models.Pagination, error)
}

type exportSlotSource interface {
	List(ctx context.Context, filter models.SlotFilter) ([]models.AvailabilitySlot, error)
}

// ExportService renders admin data exports as CSV or PDF documents.
type ExportService struct {
	maxRows int
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	store   *storage.LocalStorage
	signer  *storage.SignedURLSigner
	logger  *zap.Logger

	profileSource  exportProfileSource
	chapterSource  exportChapterSource
	feedbackSource exportFeedbackSource
	slotSource     exportSlotSource
}

// NewExportService constructs an ExportService. store and signer are optional;
// when both are set each rendered document is archived and a signed download
// token is attached to the result.
func NewExportService(profileSource exportProfileSource, chapterSource exportChapterSource, feedbackSource exportFeedbackSource, slotSource exportSlotSource, store *storage.LocalStorage, signer *storage.SignedURLSigner, maxRows int, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRows <= 0 {
		maxRows = 1000
	}
	return &ExportService{
		maxRows:        maxRows,
		csv:            export.NewCSVExporter(),
		pdf:            export.NewPDFExporter(),
		store:          store,
		signer:         signer,
		logger:         logger,
		profileSource:  profileSource,
		chapterSource:  chapterSource,
		feedbackSource: feedbackSource,
		slotSource:     slotSource,
	}
}

// Export builds the dataset for the named resource and renders it in the
// requested format.
func (s *ExportService) Export(ctx context.Context, resource string, format ExportFormat) (*ExportResult, error) {
	var (
		dataset export.Dataset
		err     error
	)
	switch resource {
	case "profiles":
		dataset, err = s.profileDataset(ctx)
	case "chapters":
		dataset, err = s.chapterDataset(ctx)
	case "feedback":
		dataset, err = s.feedbackDataset(ctx)
	case "availability":
		dataset, err = s.slotDataset(ctx)
	default:
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown export resource %q", resource))
	}
	if err != nil {
		return nil, err
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	var result *ExportResult
	switch format {
	case ExportCSV:
		body, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		result = &ExportResult{
			FileName:    fmt.Sprintf("%s-%s.csv", resource, stamp),
			ContentType: "text/csv",
			Body:        body,
		}
	case ExportPDF:
		body, err := s.pdf.Render(dataset, resource)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		result = &ExportResult{
			FileName:    fmt.Sprintf("%s-%s.pdf", resource, stamp),
			ContentType: "application/pdf",
			Body:        body,
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	s.archive(result)
	return result, nil
}

// archive persists the rendered document and attaches a signed download
// token. Failures only cost re-downloadability, so they are logged and the
// inline response proceeds.
func (s *ExportService) archive(result *ExportResult) {
	if s.store == nil || s.signer == nil {
		return
	}
	if _, err := s.store.Save(result.FileName, result.Body); err != nil {
		s.logger.Warn("failed to archive export", zap.String("file", result.FileName), zap.Error(err))
		return
	}
	token, expires, err := s.signer.Generate(uuid.NewString(), result.FileName)
	if err != nil {
		s.logger.Warn("failed to sign export download", zap.String("file", result.FileName), zap.Error(err))
		return
	}
	result.DownloadToken = token
	result.ExpiresAt = &expires
}

// OpenArchived validates a signed download token and returns the archived
// document.
func (s *ExportService) OpenArchived(token string) (*ExportResult, error) {
	if s.store == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export archive is not configured")
	}
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid download token")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
	}
	defer file.Close()

	body, err := io.ReadAll(file)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read archived export")
	}
	return &ExportResult{
		FileName:    filepath.Base(relPath),
		ContentType: contentTypeFor(relPath),
		Body:        body,
	}, nil
}

func contentTypeFor(path string) string {
	if strings.HasSuffix(path, ".pdf") {
		return "application/pdf"
	}
	return "text/csv"
}

func (s *ExportService) profileDataset(ctx context.Context) (export.Dataset, error) {
	profiles, _, err := s.profileSource.List(ctx, models.ProfileFilter{Page: 1, PageSize: s.maxRows, SortBy: "created_at", SortOrder: "ASC"})
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profiles for export")
	}
	dataset := export.Dataset{Headers: []string{"email", "full_name", "role", "approval_status", "created_at"}}
	for _, p := range profiles {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"email":           p.Email,
			"full_name":       p.FullName,
			"role":            string(p.Role),
			"approval_status": string(p.ApprovalStatus),
			"created_at":      p.CreatedAt.Format(time.RFC3339),
		})
	}
	return dataset, nil
}

func (s *ExportService) chapterDataset(ctx context.Context) (export.Dataset, error) {
	chapters, err := s.chapterSource.List(ctx, models.ChapterFilter{})
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load chapters for export")
	}
	dataset := export.Dataset{Headers: []string{"position", "title", "status", "duration_minutes", "updated_at"}}
	for _, c := range chapters {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"position":         strconv.Itoa(c.OrderIndex),
			"title":            c.Title,
			"status":           string(c.Status),
			"duration_minutes": strconv.Itoa(c.DurationMinutes),
			"updated_at":       c.UpdatedAt.Format(time.RFC3339),
		})
	}
	return dataset, nil
}

func (s *ExportService) feedbackDataset(ctx context.Context) (export.Dataset, error) {
	entries, _, err := s.feedbackSource.List(ctx, models.FeedbackFilter{Page: 1, PageSize: s.maxRows})
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load feedback for export")
	}
	dataset := export.Dataset{Headers: []string{"type", "subject", "status", "rating", "anonymous", "created_at"}}
	for _, f := range entries {
		rating := ""
		if f.Rating != nil {
			rating = strconv.Itoa(*f.Rating)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"type":       string(f.Type),
			"subject":    f.Subject,
			"status":     string(f.Status),
			"rating":     rating,
			"anonymous":  strconv.FormatBool(f.IsAnonymous),
			"created_at": f.CreatedAt.Format(time.RFC3339),
		})
	}
	return dataset, nil
}

func (s *ExportService) slotDataset(ctx context.Context) (export.Dataset, error) {
	slots, err := s.slotSource.List(ctx, models.SlotFilter{})
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability for export")
	}
	dataset := export.Dataset{Headers: []string{"title", "start_time", "end_time", "slot_type", "active"}}
	for _, sl := range slots {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"title":      sl.Title,
			"start_time": sl.StartTime.Format(time.RFC3339),
			"end_time":   sl.EndTime.Format(time.RFC3339),
			"slot_type":  sl.SlotType,
			"active":     strconv.FormatBool(sl.IsActive),
		})
	}
	return dataset, nil
}
