package models_test

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/robalyx/shopledger/internal/database/models"
	"github.com/robalyx/shopledger/internal/reputation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"go.uber.org/zap/zaptest"
)

func setupModel(t *testing.T) (*models.ReputationModel, *bun.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqldb, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { _ = db.Close() })

	return models.NewReputation(db, zaptest.NewLogger(t)), db, mock
}

func TestLockShopScore(t *testing.T) {
	t.Parallel()

	model, db, mock := setupModel(t)
	lockQuery := `SELECT .*"reputation_score" FROM "shops".* WHERE \(id = 7\).* FOR UPDATE`

	mock.ExpectQuery(lockQuery).
		WillReturnRows(sqlmock.NewRows([]string{"id", "reputation_score"}).AddRow(int64(7), "62.5"))
	mock.ExpectQuery(lockQuery).
		WillReturnRows(sqlmock.NewRows([]string{"id", "reputation_score"}).AddRow(int64(7), nil))
	mock.ExpectQuery(lockQuery).
		WillReturnRows(sqlmock.NewRows([]string{"id", "reputation_score"}))

	uow := model.WithTx(db)

	score, err := uow.LockShopScore(t.Context(), 7)
	require.NoError(t, err)
	require.NotNil(t, score)
	assert.InDelta(t, 62.5, *score, 1e-9)

	score, err = uow.LockShopScore(t.Context(), 7)
	require.NoError(t, err)
	assert.Nil(t, score)

	_, err = uow.LockShopScore(t.Context(), 7)
	require.ErrorIs(t, err, reputation.ErrShopNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateShopScoreWritesDecimal(t *testing.T) {
	t.Parallel()

	model, db, mock := setupModel(t)

	mock.ExpectExec(`UPDATE "shops".* SET reputation_score = '58\.5', reputation_updated_at = .* WHERE \(id = 3\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := model.WithTx(db).UpdateShopScore(t.Context(), 3, 58.5, time.Now())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendEventReturnsID(t *testing.T) {
	t.Parallel()

	model, db, mock := setupModel(t)

	mock.ExpectQuery(`INSERT INTO "reputation_events" .*'-1\.5', '60', '58\.5'.*RETURNING "?id"?`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(101)))

	event := &reputation.Event{
		ID:        55,
		ShopID:    3,
		Delta:     -1.5,
		Before:    60,
		After:     58.5,
		Source:    "complaint",
		CreatedAt: time.Now(),
	}

	require.NoError(t, model.WithTx(db).AppendEvent(t.Context(), event))
	assert.Equal(t, int64(101), event.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
