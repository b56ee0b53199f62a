package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/gradworks/gradcafe-harvester/internal/pipeline"
)

func sampleRecord() pipeline.EnrichedEntry {
	return pipeline.EnrichedEntry{
		Entry: pipeline.Entry{
			ResultID:      "912345",
			University:    "Georgia Tech",
			Program:       "Computer Science",
			DegreeType:    "PhD",
			DateAdded:     "March 1, 2026",
			Status:        "accepted: 15 mar",
			StartTerm:     "Fall 2026",
			Citizenship:   "International",
			Comments:      "Got the call today",
			URL:           "https://www.thegradcafe.com/result/912345",
			GPA:           "3.85",
			GREGeneral:    "325",
			GREVerbal:     "162",
			GREAnalytical: "4.5",
		},
		LLMProgram:    "Computer Science",
		LLMUniversity: "Georgia Institute of Technology",
	}
}

func expectedArgs(rec pipeline.EnrichedEntry) []any {
	date, _ := time.Parse("January 2, 2006", rec.DateAdded)
	return []any{
		rec.Program + " - " + rec.University,
		rec.Comments,
		date,
		rec.URL,
		rec.Status,
		rec.StartTerm,
		rec.Citizenship,
		3.85,
		325.0,
		162.0,
		4.5,
		rec.DegreeType,
		rec.LLMProgram,
		rec.LLMUniversity,
	}
}

func TestUpsertInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "grad_applications")
	require.NoError(t, err)

	rec := sampleRecord()
	mock.ExpectExec("INSERT INTO grad_applications").
		WithArgs(expectedArgs(rec)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	inserted, err := store.UpsertIgnoreDuplicates(context.Background(), []pipeline.EnrichedEntry{rec})
	require.NoError(t, err)
	require.Equal(t, int64(1), inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertIgnoresDuplicateURL(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "grad_applications")
	require.NoError(t, err)

	rec := sampleRecord()
	args := expectedArgs(rec)

	mock.ExpectExec("INSERT INTO grad_applications").
		WithArgs(args...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO grad_applications").
		WithArgs(args...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	first, err := store.UpsertIgnoreDuplicates(context.Background(), []pipeline.EnrichedEntry{rec})
	require.NoError(t, err)
	require.Equal(t, int64(1), first)

	second, err := store.UpsertIgnoreDuplicates(context.Background(), []pipeline.EnrichedEntry{rec})
	require.NoError(t, err)
	require.Equal(t, int64(0), second)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSkipsUnparseableNumbers(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "grad_applications")
	require.NoError(t, err)

	rec := sampleRecord()
	rec.GPA = "n/a"
	rec.GREGeneral = ""
	rec.DateAdded = "sometime in spring"
	rec.Comments = ""

	mock.ExpectExec("INSERT INTO grad_applications").
		WithArgs(
			rec.Program+" - "+rec.University,
			nil,
			nil,
			rec.URL,
			rec.Status,
			rec.StartTerm,
			rec.Citizenship,
			nil,
			nil,
			162.0,
			4.5,
			rec.DegreeType,
			rec.LLMProgram,
			rec.LLMUniversity,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	inserted, err := store.UpsertIgnoreDuplicates(context.Background(), []pipeline.EnrichedEntry{rec})
	require.NoError(t, err)
	require.Equal(t, int64(1), inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRebuildTruncatesThenReloads(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "grad_applications")
	require.NoError(t, err)

	rec := sampleRecord()
	mock.ExpectExec("TRUNCATE grad_applications RESTART IDENTITY").
		WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectExec("INSERT INTO grad_applications").
		WithArgs(expectedArgs(rec)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	inserted, err := store.RebuildAll(context.Background(), []pipeline.EnrichedEntry{rec})
	require.NoError(t, err)
	require.Equal(t, int64(1), inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaCreatesTableAndIndex(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "grad_applications")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS grad_applications").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE UNIQUE INDEX IF NOT EXISTS idx_grad_applications_url").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolRejectsBadTableName(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "grad_applications; DROP TABLE x")
	require.Error(t, err)
}
