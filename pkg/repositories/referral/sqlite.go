package referral

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

const referralColumns = `id, referrer_id, referred_id, status, approved_at, points_awarded, created_at`

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

func scanReferral(row rowScanner) (*entities.Referral, error) {
	var (
		referral   entities.Referral
		status     string
		approvedAt sql.NullString
		createdAt  string
	)
	err := row.Scan(
		&referral.ID, &referral.ReferrerID, &referral.ReferredID, &status, &approvedAt,
		&referral.PointsAwarded, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	referral.Status = entities.ReferralStatus(status)
	if referral.ApprovedAt, err = db.ParseNullTime(approvedAt); err != nil {
		return nil, err
	}
	if referral.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return nil, err
	}
	return &referral, nil
}

// Create inserts a pending referral
func (r *SQLiteRepository) Create(ctx context.Context, referral *entities.Referral) error {
	if referral.ID == "" {
		referral.ID = uuid.New().String()
	}
	if referral.CreatedAt.IsZero() {
		referral.CreatedAt = time.Now().UTC()
	}
	if referral.Status == "" {
		referral.Status = entities.ReferralPending
	}

	query := `INSERT INTO referrals (` + referralColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		referral.ID, referral.ReferrerID, referral.ReferredID, string(referral.Status),
		db.FormatTimePtr(referral.ApprovedAt), referral.PointsAwarded, db.FormatTime(referral.CreatedAt),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return ErrDuplicateReferral
		}
		return fmt.Errorf("error creating referral: %w", err)
	}
	return nil
}

// Find retrieves the referral for a (referrer, referred) pair
func (r *SQLiteRepository) Find(ctx context.Context, referrerID, referredID string) (*entities.Referral, error) {
	query := `SELECT ` + referralColumns + ` FROM referrals WHERE referrer_id = ? AND referred_id = ?`

	referral, err := scanReferral(r.db.QueryRowContext(ctx, query, referrerID, referredID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReferralNotFound
		}
		return nil, fmt.Errorf("error getting referral: %w", err)
	}
	return referral, nil
}

// Approve flips a pending referral to approved
func (r *SQLiteRepository) Approve(ctx context.Context, id string, approvedAt time.Time, points int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE referrals SET status = ?, approved_at = ?, points_awarded = ? WHERE id = ? AND status = ?`,
		string(entities.ReferralApproved), db.FormatTime(approvedAt), points, id, string(entities.ReferralPending),
	)
	if err != nil {
		return fmt.Errorf("error approving referral: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 1 {
		return nil
	}

	var one int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM referrals WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrReferralNotFound
	}
	if err != nil {
		return fmt.Errorf("error checking referral: %w", err)
	}
	return ErrAlreadyApproved
}

// CountApprovedSince counts a referrer's approvals at or after since
func (r *SQLiteRepository) CountApprovedSince(ctx context.Context, referrerID string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM referrals WHERE referrer_id = ? AND status = ? AND approved_at >= ?`,
		referrerID, string(entities.ReferralApproved), db.FormatTime(since),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting approved referrals: %w", err)
	}
	return count, nil
}

// ListByReferrer returns every referral a referrer made, newest first
func (r *SQLiteRepository) ListByReferrer(ctx context.Context, referrerID string) ([]*entities.Referral, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE referrer_id = ? ORDER BY created_at DESC`, referrerID,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying referrals: %w", err)
	}
	defer rows.Close()

	result := make([]*entities.Referral, 0)
	for rows.Next() {
		referral, err := scanReferral(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning referral row: %w", err)
		}
		result = append(result, referral)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating referral rows: %w", err)
	}
	return result, nil
}
