package db

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return NewRepository(sqlx.NewDb(mockDB, "postgres"), zap.NewNop()), mock
}

var partyColumns = []string{"id", "shortname", "fullname", "description", "url", "given_name", "family_name"}

func TestGetElection(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	date := time.Date(2025, 9, 28, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, name, country, year, election_date, url, default_language, manifesto_language`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "country", "year", "election_date", "url", "default_language", "manifesto_language",
		}).AddRow(id, "Federal Election", "Germany", 2025, date, "https://election.example", "de", "de"))

	e, err := repo.GetElection(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Federal Election", e.Name)
	assert.Equal(t, 2025, e.Year)
	assert.Equal(t, "de", e.ManifestoLanguage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetElectionNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT id, name, country`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetElection(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListParties(t *testing.T) {
	repo, mock := newMockRepo(t)
	electionID := uuid.New()
	spdID, cduID := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT p.id, p.shortname, p.fullname`).
		WithArgs(electionID).
		WillReturnRows(sqlmock.NewRows(partyColumns).
			AddRow(cduID, "CDU", "Christian Democratic Union", "desc", "https://cdu.example", "Max", "Beispiel").
			AddRow(spdID, "SPD", "Social Democratic Party", "desc", "https://spd.example", "", ""))

	parties, err := repo.ListParties(context.Background(), electionID)
	require.NoError(t, err)
	require.Len(t, parties, 2)
	assert.Equal(t, "CDU", parties[0].ShortName)
	assert.Equal(t, "Max", parties[0].Candidate.GivenName)
	assert.Empty(t, parties[1].Candidate.GivenName)
}

func TestGetPartiesByShortNames(t *testing.T) {
	repo, mock := newMockRepo(t)
	electionID := uuid.New()
	spdID := uuid.New()

	mock.ExpectQuery(`shortname IN`).
		WithArgs(electionID, "SPD").
		WillReturnRows(sqlmock.NewRows(partyColumns).
			AddRow(spdID, "SPD", "Social Democratic Party", "desc", "https://spd.example", "Erika", "Mustermann"))

	parties, err := repo.GetPartiesByShortNames(context.Background(), electionID, []string{"SPD"})
	require.NoError(t, err)
	require.Len(t, parties, 1)
	assert.Equal(t, spdID, parties[0].ID)
}

func TestGetPartiesByShortNamesMissingName(t *testing.T) {
	repo, mock := newMockRepo(t)
	electionID := uuid.New()

	mock.ExpectQuery(`shortname IN`).
		WithArgs(electionID, "SPD", "NOPE").
		WillReturnRows(sqlmock.NewRows(partyColumns).
			AddRow(uuid.New(), "SPD", "Social Democratic Party", "", "", "", ""))

	_, err := repo.GetPartiesByShortNames(context.Background(), electionID, []string{"SPD", "NOPE"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "NOPE")
}

func TestGetPartiesByShortNamesEmptyInput(t *testing.T) {
	repo, _ := newMockRepo(t)
	parties, err := repo.GetPartiesByShortNames(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	assert.Nil(t, parties)
}

func TestListAvailableShortNames(t *testing.T) {
	repo, mock := newMockRepo(t)
	electionID := uuid.New()

	mock.ExpectQuery(`shortname NOT IN`).
		WithArgs(electionID, "SPD").
		WillReturnRows(sqlmock.NewRows([]string{"shortname"}).AddRow("CDU").AddRow("FDP"))

	names, err := repo.ListAvailableShortNames(context.Background(), electionID, []string{"SPD"})
	require.NoError(t, err)
	assert.Equal(t, []string{"CDU", "FDP"}, names)
}
