package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pharma-price-crawler/internal/catalog"
)

func newMockStore(t *testing.T) (*CatalogStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	st, err := NewWithPool(mock)
	require.NoError(t, err)
	return st, mock
}

func TestNewWithPoolRequiresPool(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(nil)
	require.Error(t, err)
}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}

func TestGetOrCreateCategoryPath(t *testing.T) {
	t.Parallel()

	st, mock := newMockStore(t)

	// Root level exists already.
	mock.ExpectQuery(`SELECT id FROM categories`).
		WithArgs("Каталог", (*int64)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))

	// Leaf level is missing and gets created under the root.
	rootID := int64(1)
	mock.ExpectQuery(`SELECT id FROM categories`).
		WithArgs("Обезболивающие", &rootID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO categories`).
		WithArgs("Обезболивающие", &rootID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := st.GetOrCreateCategoryPath(context.Background(), []string{"Каталог", "Обезболивающие"})
	require.NoError(t, err)
	require.Equal(t, int64(7), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

// Two workers can race on the same missing node. The loser's insert hits
// ON CONFLICT DO NOTHING, returns no row, and must fall back to re-selecting
// the winner's id instead of erroring or duplicating the node.
func TestGetOrCreateCategoryPathLostInsertRace(t *testing.T) {
	t.Parallel()

	st, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id FROM categories`).
		WithArgs("Каталог", (*int64)(nil)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO categories`).
		WithArgs("Каталог", (*int64)(nil)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT id FROM categories`).
		WithArgs("Каталог", (*int64)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(5)))

	id, err := st.GetOrCreateCategoryPath(context.Background(), []string{"Каталог"})
	require.NoError(t, err)
	require.Equal(t, int64(5), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateCategoryPathEmpty(t *testing.T) {
	t.Parallel()

	st, mock := newMockStore(t)

	id, err := st.GetOrCreateCategoryPath(context.Background(), nil)
	require.NoError(t, err)
	require.Zero(t, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertMedicineIsIdempotent(t *testing.T) {
	t.Parallel()

	st, mock := newMockStore(t)
	m := catalog.Medicine{
		Name:           "Нурофен Форте",
		NormalizedName: "нурофен форте",
		Description:    "Обезболивающее",
	}

	// Both sightings resolve to the same id; the second merely updates the
	// row in place.
	for i := 0; i < 2; i++ {
		mock.ExpectQuery(`INSERT INTO medicines`).
			WithArgs(m.Name, m.NormalizedName, m.Description, m.ImageURL, m.CategoryID).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))
	}

	first, err := st.UpsertMedicine(context.Background(), m)
	require.NoError(t, err)
	second, err := st.UpsertMedicine(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMedicineKeysOrderedByID(t *testing.T) {
	t.Parallel()

	st, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, normalized_name FROM medicines ORDER BY id`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "normalized_name"}).
			AddRow(int64(1), "нурофен форте").
			AddRow(int64(2), "парацетамол"))

	keys, err := st.MedicineKeys(context.Background())
	require.NoError(t, err)
	require.Equal(t, []catalog.MedicineKey{
		{ID: 1, NormalizedName: "нурофен форте"},
		{ID: 2, NormalizedName: "парацетамол"},
	}, keys)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsurePharmacy(t *testing.T) {
	t.Parallel()

	st, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO pharmacies`).
		WithArgs("gosapteka18", "https://gosapteka18.ru").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))

	id, err := st.EnsurePharmacy(context.Background(), "gosapteka18", "https://gosapteka18.ru")
	require.NoError(t, err)
	require.Equal(t, int64(3), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPrice(t *testing.T) {
	t.Parallel()

	st, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO pharmacy_prices`).
		WithArgs(int64(3), int64(42), 199.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, st.UpsertPrice(context.Background(), 3, 42, 199.0))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPriceReObservationOverwrites(t *testing.T) {
	t.Parallel()

	st, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO pharmacy_prices`).
		WithArgs(int64(3), int64(42), 199.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO pharmacy_prices`).
		WithArgs(int64(3), int64(42), 214.5).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, st.UpsertPrice(context.Background(), 3, 42, 199.0))
	require.NoError(t, st.UpsertPrice(context.Background(), 3, 42, 214.5))
	require.NoError(t, mock.ExpectationsWereMet())
}
