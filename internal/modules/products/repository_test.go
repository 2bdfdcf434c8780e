package products

import (
	"database/sql"
	"errors"
	"os"
	"testing"

	"github.com/aristath/noteengine/internal/domain"
	"github.com/aristath/noteengine/internal/modules/triggers"
	testutil "github.com/aristath/noteengine/internal/testing"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// every pooled connection would get its own empty :memory: database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	schema, err := os.ReadFile("../../database/schemas/notes_schema.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)
	return db
}

func TestRepository_CreateAndGetRoundTrip(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())

	in := testutil.NewCapitalProtectionFixture()
	in.Underlyings[0].Breaches = []domain.BreachEvent{
		{Date: testutil.Date(2024, 5, 2), Kind: domain.BreachKindKnockIn, ReferenceLevel: 0.58, LevelPct: 60},
	}
	in.Fixings = []domain.Fixing{{Date: testutil.Date(2024, 8, 1), Level: 1.05}}
	in.IssuerCall = &domain.IssuerCallRecord{Date: testutil.Date(2024, 8, 1), Month: 6}

	id, err := repo.Create(in)
	require.NoError(t, err)
	assert.Equal(t, in.ID, id)

	got, err := repo.GetByID(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, in, *got)
}

func TestRepository_CreateGeneratesID(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())

	in := testutil.NewBoostedGrowthFixture()
	in.ID = ""
	id, err := repo.Create(in)
	require.NoError(t, err)
	assert.Len(t, id, 36)

	got, err := repo.GetByID(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"SX5E", "NKY"}, []string{got.Underlyings[0].Symbol, got.Underlyings[1].Symbol})
}

func TestRepository_GetByIDMissing(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())

	got, err := repo.GetByID("missing")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepository_List(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	for _, in := range testutil.NewProductFixtures() {
		_, err := repo.Create(in)
		require.NoError(t, err)
	}

	list, err := repo.List()
	require.NoError(t, err)
	ids := make([]string, len(list))
	for i, in := range list {
		ids[i] = in.ID
	}
	assert.ElementsMatch(t, []string{"ri-spx", "cp-sx5e", "bg-sx5e-nky"}, ids)
}

func TestRepository_UpdatePrices(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	_, err := repo.Create(testutil.NewBoostedGrowthFixture())
	require.NoError(t, err)

	require.NoError(t, repo.UpdatePrices("bg-sx5e-nky", map[string]float64{"SX5E": 3100}))
	got, err := repo.GetByID("bg-sx5e-nky")
	require.NoError(t, err)
	assert.Equal(t, 3100.0, got.Underlyings[0].CurrentPrice)
	assert.Equal(t, 4000.0, got.Underlyings[0].InitialPrice)

	err = repo.UpdatePrices("bg-sx5e-nky", map[string]float64{"NKY": 1, "DAX": 2})
	assert.True(t, errors.Is(err, ErrUnknownUnderlying))

	got, err = repo.GetByID("bg-sx5e-nky")
	require.NoError(t, err)
	assert.Equal(t, 33000.0, got.Underlyings[1].CurrentPrice, "failed update is rolled back")
}

func TestRepository_AddFixingKeepsFirst(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	_, err := repo.Create(testutil.NewRegularIncomeFixture())
	require.NoError(t, err)

	inserted, err := repo.AddFixing("ri-spx", domain.Fixing{Date: testutil.Date(2024, 4, 15), Level: 1.02})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.AddFixing("ri-spx", domain.Fixing{Date: testutil.Date(2024, 4, 15), Level: 0.5})
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := repo.GetByID("ri-spx")
	require.NoError(t, err)
	require.Len(t, got.Fixings, 1)
	assert.Equal(t, 1.02, got.Fixings[0].Level)
}

func TestRepository_RecordIssuerCallIsWriteOnce(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	_, err := repo.Create(testutil.NewCapitalProtectionFixture())
	require.NoError(t, err)

	call := domain.IssuerCallRecord{Date: testutil.Date(2024, 8, 1), Month: 6}
	require.NoError(t, repo.RecordIssuerCall("cp-sx5e", call))

	err = repo.RecordIssuerCall("cp-sx5e", domain.IssuerCallRecord{Date: testutil.Date(2025, 2, 1), Month: 12})
	assert.ErrorIs(t, err, ErrIssuerCallRecorded)

	got, err := repo.GetByID("cp-sx5e")
	require.NoError(t, err)
	require.NotNil(t, got.IssuerCall)
	assert.Equal(t, call, *got.IssuerCall)
}

func TestRepository_AppendBreachEventsIsAppendOnly(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	_, err := repo.Create(testutil.NewBoostedGrowthFixture())
	require.NoError(t, err)

	first := triggers.RecordedBreach{
		Symbol: "SX5E",
		Event:  domain.BreachEvent{Date: testutil.Date(2024, 9, 10), Kind: domain.BreachKindBarrier, ReferenceLevel: 0.575, LevelPct: 60},
	}
	added, err := repo.AppendBreachEvents("bg-sx5e-nky", []triggers.RecordedBreach{first})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	again := first
	again.Event.ReferenceLevel = 0.4
	second := triggers.RecordedBreach{
		Symbol: "SX5E",
		Event:  domain.BreachEvent{Date: testutil.Date(2024, 9, 11), Kind: domain.BreachKindBarrier, ReferenceLevel: 0.59, LevelPct: 60},
	}
	added, err = repo.AppendBreachEvents("bg-sx5e-nky", []triggers.RecordedBreach{again, second})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	got, err := repo.GetByID("bg-sx5e-nky")
	require.NoError(t, err)
	breaches := got.Underlyings[0].Breaches
	require.Len(t, breaches, 2)
	assert.Equal(t, 0.575, breaches[0].ReferenceLevel, "stored event is never overwritten")
	assert.Empty(t, got.Underlyings[1].Breaches)

	added, err = repo.AppendBreachEvents("bg-sx5e-nky", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, added)
}

func TestRepository_CouponStatesKeepPaidRows(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	_, err := repo.Create(testutil.NewRegularIncomeFixture())
	require.NoError(t, err)

	entries := []domain.CouponEntry{
		{ObservationDate: testutil.Date(2024, 4, 15), PaymentDate: testutil.Date(2024, 4, 20), CouponRate: 1.4375, Amount: 1437.5, Status: domain.CouponPaid},
		{ObservationDate: testutil.Date(2024, 7, 15), PaymentDate: testutil.Date(2024, 7, 20), CouponRate: 1.4375, Amount: 1437.5, Status: domain.CouponUpcoming},
	}
	require.NoError(t, repo.SaveCouponStates("ri-spx", entries))

	rewritten := []domain.CouponEntry{entries[0], entries[1]}
	rewritten[0].Status = domain.CouponPending
	rewritten[0].Amount = 0
	rewritten[1].Status = domain.CouponPaid
	require.NoError(t, repo.SaveCouponStates("ri-spx", rewritten))

	got, err := repo.GetCouponStates("ri-spx")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.CouponPaid, got[0].Status)
	assert.Equal(t, 1437.5, got[0].Amount)
	assert.Equal(t, domain.CouponPaid, got[1].Status)
	assert.True(t, got[1].ObservationDate.Equal(testutil.Date(2024, 7, 15)))
}
