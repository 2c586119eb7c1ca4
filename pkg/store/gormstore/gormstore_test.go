package gormstore

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wilhg/workshop/pkg/store"
)

func setupTestDB(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return New(gormDB), mock
}

func TestPutUpserts(t *testing.T) {
	s, mock := setupTestDB(t)
	payload := []byte(`{"format":"workshop.snapshot/v1"}`)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `snapshot_blobs`")).
		WithArgs("snapshots/1.json", payload, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.Put(context.Background(), "snapshots/1.json", payload))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutWrapsDriverError(t *testing.T) {
	s, mock := setupTestDB(t)
	boom := errors.New("connection reset")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `snapshot_blobs`")).WillReturnError(boom)

	err := s.Put(context.Background(), "snapshots/1.json", []byte("x"))
	require.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	s, mock := setupTestDB(t)
	rows := sqlmock.NewRows([]string{"path", "data", "updated_at"}).
		AddRow("caretaker/history.json", []byte(`{"snapshots":[]}`), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `snapshot_blobs` WHERE path = ?")).WillReturnRows(rows)

	got, err := s.Get(context.Background(), "caretaker/history.json")
	require.NoError(t, err)
	assert.Equal(t, `{"snapshots":[]}`, string(got))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMissingIsNotFound(t *testing.T) {
	s, mock := setupTestDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `snapshot_blobs` WHERE path = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"path", "data", "updated_at"}))

	_, err := s.Get(context.Background(), "snapshots/9.json")
	require.Error(t, err)
	assert.True(t, store.IsNotFound(err))
}

func TestDelete(t *testing.T) {
	s, mock := setupTestDB(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `snapshot_blobs` WHERE path = ?")).
		WithArgs("snapshots/1.json").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Delete(context.Background(), "snapshots/1.json"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListEscapesPrefixAndFiltersCase(t *testing.T) {
	s, mock := setupTestDB(t)
	rows := sqlmock.NewRows([]string{"path"}).
		AddRow("snapshots/1.json").
		AddRow("SNAPSHOTS/2.json").
		AddRow("snapshots/3.json")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT `path` FROM `snapshot_blobs` WHERE path LIKE ?")).
		WithArgs("snapshots/%").
		WillReturnRows(rows)

	keys, err := s.List(context.Background(), "snapshots/")
	require.NoError(t, err)
	assert.Equal(t, []string{"snapshots/1.json", "snapshots/3.json"}, keys)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `snap\_x\%`, escapeLike("snap_x%"))
}
