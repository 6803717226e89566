package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/evanschultz/funnel/internal/adapters/storage/postgres"
	"github.com/evanschultz/funnel/internal/app"
	"github.com/evanschultz/funnel/internal/domain"
)

func setupMockDB(t *testing.T) (*postgres.Repository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	dialector := gormpostgres.New(gormpostgres.Config{
		DSN:                  "sqlmock_db_0",
		DriverName:           "postgres",
		Conn:                 db,
		PreferSimpleProtocol: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	require.NoError(t, err)

	return postgres.New(gormDB), mock
}

var itemColumns = []string{
	"id", "pipeline", "status", "title", "person", "organization", "owner", "tag",
	"value", "probability", "expected_close_at", "notes", "created_at", "updated_at",
}

func TestRepository_ListItems(t *testing.T) {
	// Arrange
	repo, mock := setupMockDB(t)
	created := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT \* FROM "pipeline_items" WHERE pipeline = .* ORDER BY created_at, id`).
		WithArgs("opportunities").
		WillReturnRows(sqlmock.NewRows(itemColumns).
			AddRow("o1", "opportunities", "aberta", "Acme", "", "Acme Ltda", "rita", "referral", "R$ 1.500,00", 60, nil, "", created, created).
			AddRow("o2", "opportunities", "ganha", "Beta", "", "", "", "", "", nil, nil, "", created, created))

	// Act
	items, err := repo.ListItems(context.Background(), domain.PipelineOpportunities)

	// Assert
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "o1", items[0].ID)
	assert.Equal(t, domain.PipelineOpportunities, items[0].Pipeline)
	assert.InDelta(t, 1500.0, items[0].Amount(), 1e-9)
	require.NotNil(t, items[0].Probability)
	assert.Equal(t, 60, *items[0].Probability)
	assert.Nil(t, items[1].Probability)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetItem_NotFound(t *testing.T) {
	// Arrange
	repo, mock := setupMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "pipeline_items" WHERE id = .*`).
		WillReturnRows(sqlmock.NewRows(itemColumns))

	// Act
	_, err := repo.GetItem(context.Background(), "missing")

	// Assert
	assert.ErrorIs(t, err, app.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_UpdateItemStatus(t *testing.T) {
	// Arrange
	repo, mock := setupMockDB(t)
	at := time.Date(2026, 2, 21, 13, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "pipeline_items" SET "status"=.*,"updated_at"=.* WHERE id = .*`).
		WithArgs("qualified", at, "l1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// Act
	err := repo.UpdateItemStatus(context.Background(), "l1", "qualified", at)

	// Assert
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_UpdateItemStatus_NotFound(t *testing.T) {
	// Arrange
	repo, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "pipeline_items"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	// Act
	err := repo.UpdateItemStatus(context.Background(), "missing", "won", time.Now())

	// Assert
	assert.ErrorIs(t, err, app.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_UpdateItemStatus_Error(t *testing.T) {
	// Arrange
	repo, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "pipeline_items"`).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	// Act
	err := repo.UpdateItemStatus(context.Background(), "l1", "won", time.Now())

	// Assert
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_UpsertItems(t *testing.T) {
	// Arrange
	repo, mock := setupMockDB(t)
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	item, err := domain.NewItem(domain.ItemInput{ID: "l1", Pipeline: domain.PipelineLeads, Status: "new", Title: "Ana"}, now)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "pipeline_items" .* ON CONFLICT \("id"\) DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// Act
	err = repo.UpsertItems(context.Background(), []domain.Item{item})

	// Assert
	assert.NoError(t, err)
	assert.NoError(t, repo.UpsertItems(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListStages(t *testing.T) {
	// Arrange
	repo, mock := setupMockDB(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT \* FROM "pipeline_stages" WHERE pipeline = .* ORDER BY position, id`).
		WithArgs("leads").
		WillReturnRows(sqlmock.NewRows([]string{"pipeline", "id", "title", "color", "position", "created_at", "updated_at"}).
			AddRow("leads", "new", "Novo Lead", "#9CA3AF", 0, now, now).
			AddRow("leads", "won", "Ganho", "#10B981", 1, now, now))

	// Act
	stages, err := repo.ListStages(context.Background(), domain.PipelineLeads)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "won"}, domain.StageList(stages).IDs())
	assert.Equal(t, domain.PipelineLeads, stages[1].Pipeline)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_UpsertStages(t *testing.T) {
	// Arrange
	repo, mock := setupMockDB(t)
	stages, err := domain.StagesFromTemplates(domain.PipelineOpportunities, domain.DefaultStageTemplates(domain.PipelineOpportunities), time.Now())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "pipeline_stages" .* ON CONFLICT \("pipeline","id"\) DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	// Act
	err = repo.UpsertStages(context.Background(), domain.PipelineOpportunities, stages)

	// Assert
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_DeleteStages(t *testing.T) {
	// Arrange
	repo, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "pipeline_stages" WHERE pipeline = .* AND id IN`).
		WithArgs("leads", "won", "lost").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	// Act
	err := repo.DeleteStages(context.Background(), domain.PipelineLeads, []string{"won", "lost"})

	// Assert
	assert.NoError(t, err)
	assert.NoError(t, repo.DeleteStages(context.Background(), domain.PipelineLeads, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_LoadCardFields(t *testing.T) {
	// Arrange
	repo, mock := setupMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "card_preferences" WHERE user_id = .*`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "fields", "updated_at"}).
			AddRow("ana", `["value","title"]`, time.Now()))
	mock.ExpectQuery(`SELECT \* FROM "card_preferences" WHERE user_id = .*`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "fields", "updated_at"}))

	// Act
	fields, ok, err := repo.LoadCardFields(context.Background(), "ana")
	_, missingOK, missingErr := repo.LoadCardFields(context.Background(), "bruno")

	// Assert
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []domain.FieldID{domain.FieldValue, domain.FieldTitle}, fields)
	assert.NoError(t, missingErr)
	assert.False(t, missingOK)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SaveCardFields(t *testing.T) {
	// Arrange
	repo, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "card_preferences" .* ON CONFLICT \("user_id"\) DO UPDATE SET`).
		WithArgs("ana", `["title","tag"]`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// Act
	err := repo.SaveCardFields(context.Background(), "ana", []domain.FieldID{domain.FieldTitle, domain.FieldTag})

	// Assert
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
