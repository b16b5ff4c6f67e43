package club

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fadedpez/clubwheel/pkg/db"
	"github.com/fadedpez/clubwheel/pkg/entities"
	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"
)

const clubColumns = `id, name, slug, join_token, pin, owner_id, latitude, longitude, address, city, active, created_at`

// SQLiteRepository implements Repository using SQLite
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over a database opened with db.Open
func NewSQLiteRepository(conn *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: conn}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClub(row rowScanner) (*entities.Club, error) {
	var (
		club      entities.Club
		pin       sql.NullString
		lat, lon  sql.NullFloat64
		active    int
		createdAt string
	)

	err := row.Scan(
		&club.ID, &club.Name, &club.Slug, &club.JoinToken, &pin, &club.OwnerID,
		&lat, &lon, &club.Address, &club.City, &active, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	club.PIN = pin.String
	club.Latitude = db.Float64Ptr(lat)
	club.Longitude = db.Float64Ptr(lon)
	club.Active = active == 1
	if club.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return nil, err
	}
	return &club, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// Create inserts a new club
func (r *SQLiteRepository) Create(ctx context.Context, club *entities.Club) error {
	if club.ID == "" {
		club.ID = uuid.New().String()
	}
	if club.CreatedAt.IsZero() {
		club.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO clubs (` + clubColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		club.ID, club.Name, club.Slug, club.JoinToken, db.NullString(club.PIN), club.OwnerID,
		db.NullFloat64(club.Latitude), db.NullFloat64(club.Longitude), club.Address, club.City,
		db.BoolInt(club.Active), db.FormatTime(club.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateClub
		}
		return fmt.Errorf("error creating club: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) getBy(ctx context.Context, column, value string) (*entities.Club, error) {
	if value == "" {
		return nil, ErrClubNotFound
	}

	query := `SELECT ` + clubColumns + ` FROM clubs WHERE ` + column + ` = ? ORDER BY created_at LIMIT 1`
	club, err := scanClub(r.db.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClubNotFound
		}
		return nil, fmt.Errorf("error getting club: %w", err)
	}
	return club, nil
}

// Get retrieves a club by ID
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*entities.Club, error) {
	return r.getBy(ctx, "id", id)
}

// GetBySlug retrieves a club by its public slug
func (r *SQLiteRepository) GetBySlug(ctx context.Context, slug string) (*entities.Club, error) {
	return r.getBy(ctx, "slug", slug)
}

// GetByJoinToken retrieves a club by its current QR join token
func (r *SQLiteRepository) GetByJoinToken(ctx context.Context, token string) (*entities.Club, error) {
	return r.getBy(ctx, "join_token", token)
}

// GetByPIN retrieves a club by its 6-digit PIN
func (r *SQLiteRepository) GetByPIN(ctx context.Context, pin string) (*entities.Club, error) {
	return r.getBy(ctx, "pin", pin)
}

// GetByOwner retrieves the club owned by an account
func (r *SQLiteRepository) GetByOwner(ctx context.Context, ownerID string) (*entities.Club, error) {
	return r.getBy(ctx, "owner_id", ownerID)
}

// Update saves every mutable field of a club
func (r *SQLiteRepository) Update(ctx context.Context, club *entities.Club) error {
	query := `
		UPDATE clubs SET
			name = ?, slug = ?, join_token = ?, pin = ?, owner_id = ?, latitude = ?, longitude = ?,
			address = ?, city = ?, active = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		club.Name, club.Slug, club.JoinToken, db.NullString(club.PIN), club.OwnerID,
		db.NullFloat64(club.Latitude), db.NullFloat64(club.Longitude), club.Address, club.City,
		db.BoolInt(club.Active), club.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateClub
		}
		return fmt.Errorf("error updating club: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrClubNotFound
	}
	return nil
}

// List returns all clubs, oldest first
func (r *SQLiteRepository) List(ctx context.Context) ([]*entities.Club, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+clubColumns+` FROM clubs ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("error querying clubs: %w", err)
	}
	defer rows.Close()

	result := make([]*entities.Club, 0)
	for rows.Next() {
		club, err := scanClub(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning club row: %w", err)
		}
		result = append(result, club)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating club rows: %w", err)
	}
	return result, nil
}
