package jobstore

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/healtharchive/internal/models"
)

func TestUpdateJobConfig_Success(t *testing.T) {
	store, mock := newTestStore(t)

	cfg := models.JobConfig{Seeds: []string{"https://example.gov"}}

	mock.ExpectExec(`UPDATE archive_jobs SET config = \$1 WHERE id = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpdateJobConfig(context.Background(), 7, cfg)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateJobConfig_NotFound(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(`UPDATE archive_jobs SET config = \$1 WHERE id = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateJobConfig(context.Background(), 404, models.JobConfig{})
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestResetRetryCount_Success(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(`UPDATE archive_jobs SET retry_count = 0 WHERE id = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.ResetRetryCount(context.Background(), 7)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResetRetryCount_NotFound(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(`UPDATE archive_jobs SET retry_count = 0 WHERE id = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.ResetRetryCount(context.Background(), 404)
	assert.ErrorIs(t, err, ErrJobNotFound)
}
