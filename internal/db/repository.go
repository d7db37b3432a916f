package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/open-democracy/em/go/orchestrator/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("db: record not found")

// Config holds database connection configuration.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConnections  int
	IdleConnections int
	MaxLifetime     time.Duration
}

// Repository reads immutable election/party/candidate records. The engine
// never writes through it.
type Repository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Connect opens the connection pool and verifies it.
func Connect(cfg Config, logger *zap.Logger) (*Repository, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("db: connect: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.IdleConnections)
	db.SetConnMaxLifetime(cfg.MaxLifetime)
	return &Repository{db: db, logger: logger}, nil
}

// NewRepository wraps an existing handle; used by tests with sqlmock.
func NewRepository(db *sqlx.DB, logger *zap.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Close releases the pool.
func (r *Repository) Close() error { return r.db.Close() }

// Ping verifies the pool is reachable; used by the readiness probe.
func (r *Repository) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

// GetElection fetches one election by id.
func (r *Repository) GetElection(ctx context.Context, id uuid.UUID) (models.Election, error) {
	const q = `SELECT id, name, country, year, election_date, url, default_language, manifesto_language
		FROM elections WHERE id = $1`
	var e models.Election
	if err := r.db.GetContext(ctx, &e, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Election{}, ErrNotFound
		}
		return models.Election{}, fmt.Errorf("db: get election: %w", err)
	}
	return e, nil
}

type partyRow struct {
	ID          uuid.UUID `db:"id"`
	ShortName   string    `db:"shortname"`
	FullName    string    `db:"fullname"`
	Description string    `db:"description"`
	URL         string    `db:"url"`
	GivenName   string    `db:"given_name"`
	FamilyName  string    `db:"family_name"`
}

func (p partyRow) toModel() models.Party {
	return models.Party{
		ID:          p.ID,
		ShortName:   p.ShortName,
		FullName:    p.FullName,
		Description: p.Description,
		URL:         p.URL,
		Candidate: models.Candidate{
			GivenName:  p.GivenName,
			FamilyName: p.FamilyName,
		},
	}
}

const partySelect = `SELECT p.id, p.shortname, p.fullname, p.description, p.url,
	COALESCE(c.given_name, '') AS given_name, COALESCE(c.family_name, '') AS family_name
	FROM parties p LEFT JOIN candidates c ON c.party_id = p.id`

// ListParties returns every party standing in the election, ordered by short
// name.
func (r *Repository) ListParties(ctx context.Context, electionID uuid.UUID) ([]models.Party, error) {
	q := partySelect + ` WHERE p.election_id = $1 ORDER BY p.shortname`
	var rows []partyRow
	if err := r.db.SelectContext(ctx, &rows, q, electionID); err != nil {
		return nil, fmt.Errorf("db: list parties: %w", err)
	}
	parties := make([]models.Party, len(rows))
	for i, row := range rows {
		parties[i] = row.toModel()
	}
	return parties, nil
}

// GetPartiesByShortNames resolves short names to party records. Missing names
// are reported as ErrNotFound with the offending name wrapped in the message.
func (r *Repository) GetPartiesByShortNames(ctx context.Context, electionID uuid.UUID, shortNames []string) ([]models.Party, error) {
	if len(shortNames) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(
		partySelect+` WHERE p.election_id = ? AND p.shortname IN (?) ORDER BY p.shortname`,
		electionID, shortNames)
	if err != nil {
		return nil, fmt.Errorf("db: build party query: %w", err)
	}
	q = r.db.Rebind(q)
	var rows []partyRow
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("db: get parties: %w", err)
	}
	found := make(map[string]struct{}, len(rows))
	parties := make([]models.Party, len(rows))
	for i, row := range rows {
		parties[i] = row.toModel()
		found[row.ShortName] = struct{}{}
	}
	for _, name := range shortNames {
		if _, ok := found[name]; !ok {
			return nil, fmt.Errorf("db: party %q: %w", name, ErrNotFound)
		}
	}
	return parties, nil
}

// ListAvailableShortNames returns the short names of parties in the election
// that are not in the excluded set. This is the remaining available roster
// shown to the target resolver.
func (r *Repository) ListAvailableShortNames(ctx context.Context, electionID uuid.UUID, excluded []string) ([]string, error) {
	var (
		q    string
		args []any
		err  error
	)
	if len(excluded) == 0 {
		q = `SELECT shortname FROM parties WHERE election_id = $1 ORDER BY shortname`
		args = []any{electionID}
	} else {
		q, args, err = sqlx.In(
			`SELECT shortname FROM parties WHERE election_id = ? AND shortname NOT IN (?) ORDER BY shortname`,
			electionID, excluded)
		if err != nil {
			return nil, fmt.Errorf("db: build roster query: %w", err)
		}
		q = r.db.Rebind(q)
	}
	var names []string
	if err := r.db.SelectContext(ctx, &names, q, args...); err != nil {
		return nil, fmt.Errorf("db: list roster: %w", err)
	}
	return names, nil
}
