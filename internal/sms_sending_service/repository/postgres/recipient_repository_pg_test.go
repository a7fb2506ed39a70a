package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madrasahportal/golang_services/internal/sms_sending_service/repository"
)

func setupRecipientTest(t *testing.T) (repository.RecipientRepository, pgxmock.PgxPoolIface) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPgRecipientRepository(mockPool, logger), mockPool
}

func TestPgRecipientRepository_ListByStudentIDs(t *testing.T) {
	query := `SELECT id, student_name, guardian_phone FROM students WHERE madrasah_id = \$1 AND id = ANY\(\$2\)`

	t.Run("KeepsRequestOrder", func(t *testing.T) {
		repo, mockPool := setupRecipientTest(t)
		defer mockPool.Close()

		ids := []string{"s3", "s1", "missing", "s2"}
		rows := mockPool.NewRows([]string{"id", "student_name", "guardian_phone"}).
			AddRow("s1", "Abdullah", "01711111111").
			AddRow("s2", "Fatima", "01722222222").
			AddRow("s3", "Yusuf", "01733333333")
		mockPool.ExpectQuery(query).WithArgs("m1", ids).WillReturnRows(rows)

		got, err := repo.ListByStudentIDs(context.Background(), "m1", ids)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "s3", got[0].StudentID)
		assert.Equal(t, "s1", got[1].StudentID)
		assert.Equal(t, "Fatima", got[2].Name)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("EmptyInputSkipsQuery", func(t *testing.T) {
		repo, mockPool := setupRecipientTest(t)
		defer mockPool.Close()

		got, err := repo.ListByStudentIDs(context.Background(), "m1", nil)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("DBError", func(t *testing.T) {
		repo, mockPool := setupRecipientTest(t)
		defer mockPool.Close()

		mockPool.ExpectQuery(query).WithArgs("m1", []string{"s1"}).WillReturnError(errors.New("boom"))
		_, err := repo.ListByStudentIDs(context.Background(), "m1", []string{"s1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPgRecipientRepository_ListByClass(t *testing.T) {
	repo, mockPool := setupRecipientTest(t)
	defer mockPool.Close()

	rows := mockPool.NewRows([]string{"id", "student_name", "guardian_phone"}).
		AddRow("s1", "Abdullah", "01711111111").
		AddRow("s2", "Bilal", "01722222222")
	mockPool.ExpectQuery(`FROM students WHERE madrasah_id = \$1 AND class_id = \$2 .* ORDER BY student_name`).
		WithArgs("m1", "class-5").
		WillReturnRows(rows)

	got, err := repo.ListByClass(context.Background(), "m1", "class-5")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
