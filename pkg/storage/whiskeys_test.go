package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DamageLabs/whiskey-canon-sub000/pkg/whiskey"
)

var _ whiskey.Store = (*WhiskeyStore)(nil)

var whiskeyCols = []string{"id", "name", "distillery", "type", "region", "age_years", "abv", "notes", "created_by", "created_at", "updated_at"}

func newMockWhiskeyStore(t *testing.T) (*WhiskeyStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWhiskeyStore(db, DialectPostgres), mock
}

func TestWhiskeyStore_Get(t *testing.T) {
	store, mock := newMockWhiskeyStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM whiskeys WHERE id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(whiskeyCols).
			AddRow(1, "Ardbeg 10", "Ardbeg", "Single Malt", "Islay", 10, 46.0, "", 3, now, now))

	w, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Ardbeg 10", w.Name)
	require.NotNil(t, w.AgeYears)
	assert.Equal(t, 10, *w.AgeYears)
	require.NotNil(t, w.ABV)
	assert.Equal(t, 46.0, *w.ABV)

	mock.ExpectQuery(`FROM whiskeys WHERE id`).WillReturnError(sql.ErrNoRows)
	_, err = store.Get(context.Background(), 2)
	assert.ErrorIs(t, err, whiskey.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWhiskeyStore_List_NullableColumns(t *testing.T) {
	store, mock := newMockWhiskeyStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM whiskeys ORDER BY id`).
		WillReturnRows(sqlmock.NewRows(whiskeyCols).
			AddRow(1, "Mystery Cask", "", "", "", nil, nil, "", 1, now, now))

	items, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].AgeYears)
	assert.Nil(t, items[0].ABV)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWhiskeyStore_Create(t *testing.T) {
	store, mock := newMockWhiskeyStore(t)
	age := 12

	mock.ExpectQuery(`INSERT INTO whiskeys`).
		WithArgs("Highland Park 12", "Highland Park", "", "Orkney", &age, nil, "", int64(4), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))

	w, err := store.Create(context.Background(), whiskey.Input{
		Name:       "Highland Park 12",
		Distillery: "Highland Park",
		Region:     "Orkney",
		AgeYears:   &age,
	}, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(9), w.ID)
	assert.Equal(t, int64(4), w.CreatedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWhiskeyStore_UpdateAndDelete_Missing(t *testing.T) {
	store, mock := newMockWhiskeyStore(t)

	mock.ExpectExec(`UPDATE whiskeys`).WillReturnResult(sqlmock.NewResult(0, 0))
	_, err := store.Update(context.Background(), 5, whiskey.Input{Name: "x"})
	assert.ErrorIs(t, err, whiskey.ErrNotFound)

	mock.ExpectExec(`DELETE FROM whiskeys WHERE id = \$1`).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, store.Delete(context.Background(), 5), whiskey.ErrNotFound)

	mock.ExpectExec(`DELETE FROM whiskeys`).WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, store.Delete(context.Background(), 6))
	assert.NoError(t, mock.ExpectationsWereMet())
}
