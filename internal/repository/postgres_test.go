package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/nurpe/subcontract-billing/internal/model"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       sqlDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return gormDB, mock
}

func TestProjectGetForUpdateLocksRow(t *testing.T) {
	gormDB, mock := newMockDB(t)
	repo := NewProjectRepository(gormDB)
	id := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "projects" WHERE id = \$1 ORDER BY .* LIMIT .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "status"}).
			AddRow(id.String(), "Retaining wall", string(model.ProjectStatusBidding)))

	project, err := repo.GetForUpdate(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Retaining wall", project.Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContractSetSignatureIsConditional(t *testing.T) {
	gormDB, mock := newMockDB(t)
	repo := NewContractRepository(gormDB)
	id := uuid.New()

	mock.ExpectExec(`UPDATE "contracts" SET "contractor_signed_at"=\$1,.* WHERE id = \$\d AND contractor_signed_at IS NULL AND status <> \$\d`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.SetSignature(context.Background(), id, SignatureColumnContractor, gormDB.NowFunc(), model.ContractStatusContractorSigned)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceCountByPeriod(t *testing.T) {
	gormDB, mock := newMockDB(t)
	repo := NewInvoiceRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "invoices" WHERE direction = $1 AND billing_year = $2 AND billing_month = $3`)).
		WithArgs(model.InvoiceDirectionOperator, 2025, 3).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountByPeriod(context.Background(), model.InvoiceDirectionOperator, 2025, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
