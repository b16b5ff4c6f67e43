package spin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fadedpez/clubwheel/pkg/db"
	"github.com/fadedpez/clubwheel/pkg/entities"
	"github.com/google/uuid"
)

const spinColumns = `id, account_id, club_id, prize_id, cost, status, created_at`

const claimColumns = `id, account_id, spin_id, prize_id, club_id, status, club_time_minutes, notes,
	confirmed_by, confirmed_at, created_at`

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

func scanSpin(row rowScanner) (*entities.Spin, error) {
	var (
		spin      entities.Spin
		status    string
		createdAt string
	)
	err := row.Scan(&spin.ID, &spin.AccountID, &spin.ClubID, &spin.PrizeID, &spin.Cost, &status, &createdAt)
	if err != nil {
		return nil, err
	}
	spin.Status = entities.SpinStatus(status)
	if spin.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return nil, err
	}
	return &spin, nil
}

func scanClaim(row rowScanner) (*entities.PrizeClaim, error) {
	var (
		claim       entities.PrizeClaim
		status      string
		confirmedAt sql.NullString
		createdAt   string
	)
	err := row.Scan(
		&claim.ID, &claim.AccountID, &claim.SpinID, &claim.PrizeID, &claim.ClubID, &status,
		&claim.ClubTimeMinutes, &claim.Notes, &claim.ConfirmedBy, &confirmedAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	claim.Status = entities.ClaimStatus(status)
	if claim.ConfirmedAt, err = db.ParseNullTime(confirmedAt); err != nil {
		return nil, err
	}
	if claim.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return nil, err
	}
	return &claim, nil
}

// Create appends a spin record
func (r *SQLiteRepository) Create(ctx context.Context, spin *entities.Spin) error {
	if spin.ID == "" {
		spin.ID = uuid.New().String()
	}
	if spin.CreatedAt.IsZero() {
		spin.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO spins (` + spinColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		spin.ID, spin.AccountID, spin.ClubID, spin.PrizeID, spin.Cost, string(spin.Status),
		db.FormatTime(spin.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("error creating spin: %w", err)
	}
	return nil
}

// Get retrieves a spin by ID
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*entities.Spin, error) {
	spin, err := scanSpin(r.db.QueryRowContext(ctx, `SELECT `+spinColumns+` FROM spins WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSpinNotFound
		}
		return nil, fmt.Errorf("error getting spin: %w", err)
	}
	return spin, nil
}

// LatestForClub returns the most recent spin at a club
func (r *SQLiteRepository) LatestForClub(ctx context.Context, clubID string) (*entities.Spin, error) {
	spins, err := r.List(ctx, Filter{ClubID: clubID, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(spins) == 0 {
		return nil, ErrSpinNotFound
	}
	return spins[0], nil
}

func spinConditions(filter Filter) (string, []interface{}) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.AccountID != "" {
		conditions = append(conditions, "account_id = ?")
		args = append(args, filter.AccountID)
	}
	if filter.ClubID != "" {
		conditions = append(conditions, "club_id = ?")
		args = append(args, filter.ClubID)
	}
	if filter.PrizeID != "" {
		conditions = append(conditions, "prize_id = ?")
		args = append(args, filter.PrizeID)
	}
	if filter.PaidOnly {
		conditions = append(conditions, "cost > 0")
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, db.FormatTime(filter.From))
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "created_at < ?")
		args = append(args, db.FormatTime(filter.To))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// List returns spins matching the filter, newest first
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) ([]*entities.Spin, error) {
	where, args := spinConditions(filter)
	query := `SELECT ` + spinColumns + ` FROM spins` + where + ` ORDER BY created_at DESC, rowid DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying spins: %w", err)
	}
	defer rows.Close()

	result := make([]*entities.Spin, 0)
	for rows.Next() {
		spin, err := scanSpin(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning spin row: %w", err)
		}
		result = append(result, spin)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating spin rows: %w", err)
	}
	return result, nil
}

// Count returns how many spins match the filter
func (r *SQLiteRepository) Count(ctx context.Context, filter Filter) (int, error) {
	where, args := spinConditions(filter)

	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM spins`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting spins: %w", err)
	}
	return count, nil
}

// CreateClaim inserts a prize claim
func (r *SQLiteRepository) CreateClaim(ctx context.Context, claim *entities.PrizeClaim) error {
	if claim.ID == "" {
		claim.ID = uuid.New().String()
	}
	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO prize_claims (` + claimColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		claim.ID, claim.AccountID, claim.SpinID, claim.PrizeID, claim.ClubID, string(claim.Status),
		claim.ClubTimeMinutes, claim.Notes, claim.ConfirmedBy, db.FormatTimePtr(claim.ConfirmedAt),
		db.FormatTime(claim.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("error creating prize claim: %w", err)
	}
	return nil
}

// GetClaim retrieves a claim by ID
func (r *SQLiteRepository) GetClaim(ctx context.Context, id string) (*entities.PrizeClaim, error) {
	claim, err := scanClaim(r.db.QueryRowContext(ctx, `SELECT `+claimColumns+` FROM prize_claims WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClaimNotFound
		}
		return nil, fmt.Errorf("error getting prize claim: %w", err)
	}
	return claim, nil
}

// UpdateClaim saves the status fields of a claim
func (r *SQLiteRepository) UpdateClaim(ctx context.Context, claim *entities.PrizeClaim) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE prize_claims SET status = ?, notes = ?, confirmed_by = ?, confirmed_at = ? WHERE id = ?`,
		string(claim.Status), claim.Notes, claim.ConfirmedBy, db.FormatTimePtr(claim.ConfirmedAt), claim.ID,
	)
	if err != nil {
		return fmt.Errorf("error updating prize claim: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrClaimNotFound
	}
	return nil
}

// ListClaims returns one page of claims, newest first, and the total match count
func (r *SQLiteRepository) ListClaims(ctx context.Context, filter ClaimFilter) ([]*entities.PrizeClaim, int, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.ClubID != "" {
		conditions = append(conditions, "club_id = ?")
		args = append(args, filter.ClubID)
	}
	if filter.AccountID != "" {
		conditions = append(conditions, "account_id = ?")
		args = append(args, filter.AccountID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM prize_claims`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting prize claims: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + claimColumns + ` FROM prize_claims` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("error querying prize claims: %w", err)
	}
	defer rows.Close()

	result := make([]*entities.PrizeClaim, 0)
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("error scanning prize claim row: %w", err)
		}
		result = append(result, claim)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating prize claim rows: %w", err)
	}
	return result, total, nil
}
