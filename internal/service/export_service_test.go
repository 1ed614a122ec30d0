package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-api/internal/models"
	"github.com/coursehub/coursehub-api/pkg/storage"
)

type profileSourceStub struct{}

func (profileSourceStub) List(_ context.Context, _ models.ProfileFilter) ([]models.Profile, int, error) {
	return []models.Profile{
		{Email: "student@example.edu", FullName: "Dana Vega", Role: models.RoleStudent, ApprovalStatus: models.ApprovalApproved, CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
	}, 1, nil
}

type chapterSourceStub struct{}

func (chapterSourceStub) List(_ context.Context, _ models.ChapterFilter) ([]models.Chapter, error) {
	return []models.Chapter{
		{Title: "Intro", Status: models.ChapterPublished, OrderIndex: 1, DurationMinutes: 45},
	}, nil
}

type feedbackSourceStub struct{}

func (feedbackSourceStub) List(_ context.Context, _ models.FeedbackFilter) ([]models.Feedback, *models.Pagination, error) {
	return []models.Feedback{{Subject: "Audio", Status: models.FeedbackReviewed}}, &models.Pagination{TotalCount: 1}, nil
}

type slotSourceStub struct{}

func (slotSourceStub) List(_ context.Context, _ models.SlotFilter) ([]models.AvailabilitySlot, error) {
	return []models.AvailabilitySlot{}, nil
}

func newTestExportService(t *testing.T) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	return NewExportService(profileSourceStub{}, chapterSourceStub{}, feedbackSourceStub{}, slotSourceStub{}, store, signer, 100, nil)
}

func TestExportProfilesCSV(t *testing.T) {
	svc := newTestExportService(t)

	result, err := svc.Export(context.Background(), "profiles", ExportCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Contains(t, string(result.Body), "student@example.edu")
	assert.Contains(t, result.FileName, "profiles-")
	assert.NotEmpty(t, result.DownloadToken)
	require.NotNil(t, result.ExpiresAt)
	assert.True(t, result.ExpiresAt.After(time.Now()))
}

func TestExportChaptersPDF(t *testing.T) {
	svc := newTestExportService(t)

	result, err := svc.Export(context.Background(), "chapters", ExportPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.NotEmpty(t, result.Body)
}

func TestExportUnknownResource(t *testing.T) {
	svc := newTestExportService(t)

	_, err := svc.Export(context.Background(), "grades", ExportCSV)
	require.Error(t, err)
}

func TestExportDownloadRoundTrip(t *testing.T) {
	svc := newTestExportService(t)

	rendered, err := svc.Export(context.Background(), "feedback", ExportCSV)
	require.NoError(t, err)
	require.NotEmpty(t, rendered.DownloadToken)

	fetched, err := svc.OpenArchived(rendered.DownloadToken)
	require.NoError(t, err)
	assert.Equal(t, rendered.FileName, fetched.FileName)
	assert.Equal(t, rendered.Body, fetched.Body)
}

func TestExportDownloadRejectsTamperedToken(t *testing.T) {
	svc := newTestExportService(t)

	rendered, err := svc.Export(context.Background(), "feedback", ExportCSV)
	require.NoError(t, err)

	_, err = svc.OpenArchived(rendered.DownloadToken + "x")
	require.Error(t, err)
}
