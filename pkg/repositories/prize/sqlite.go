package prize

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fadedpez/clubwheel/pkg/db"
	"github.com/fadedpez/clubwheel/pkg/entities"
	"github.com/google/uuid"
)

const prizeColumns = `id, name, description, image_url, category, value, weight, slot_index,
	total_quantity, remaining_quantity, active, created_at`

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

func scanPrize(row rowScanner) (*entities.Prize, error) {
	var (
		prize            entities.Prize
		category         string
		total, remaining sql.NullInt64
		active           int
		createdAt        string
	)

	err := row.Scan(
		&prize.ID, &prize.Name, &prize.Description, &prize.ImageURL, &category, &prize.Value,
		&prize.Weight, &prize.SlotIndex, &total, &remaining, &active, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	prize.Category = entities.PrizeCategory(category)
	prize.TotalQuantity = db.Int64Ptr(total)
	prize.RemainingQuantity = db.Int64Ptr(remaining)
	prize.Active = active == 1
	if prize.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return nil, err
	}
	return &prize, nil
}

// Create inserts a new prize
func (r *SQLiteRepository) Create(ctx context.Context, prize *entities.Prize) error {
	if prize.ID == "" {
		prize.ID = uuid.New().String()
	}
	if prize.CreatedAt.IsZero() {
		prize.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO prizes (` + prizeColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		prize.ID, prize.Name, prize.Description, prize.ImageURL, string(prize.Category), prize.Value,
		prize.Weight, prize.SlotIndex, db.NullInt64(prize.TotalQuantity), db.NullInt64(prize.RemainingQuantity),
		db.BoolInt(prize.Active), db.FormatTime(prize.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("error creating prize: %w", err)
	}
	return nil
}

// Get retrieves a prize by ID
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*entities.Prize, error) {
	prize, err := scanPrize(r.db.QueryRowContext(ctx, `SELECT `+prizeColumns+` FROM prizes WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPrizeNotFound
		}
		return nil, fmt.Errorf("error getting prize: %w", err)
	}
	return prize, nil
}

// Update saves the descriptive fields of a prize and reads back its stock
func (r *SQLiteRepository) Update(ctx context.Context, prize *entities.Prize) error {
	query := `
		UPDATE prizes SET
			name = ?, description = ?, image_url = ?, category = ?, value = ?, weight = ?,
			slot_index = ?, active = ?
		WHERE id = ?
		RETURNING total_quantity, remaining_quantity
	`
	var total, remaining sql.NullInt64
	err := r.db.QueryRowContext(ctx, query,
		prize.Name, prize.Description, prize.ImageURL, string(prize.Category), prize.Value, prize.Weight,
		prize.SlotIndex, db.BoolInt(prize.Active), prize.ID,
	).Scan(&total, &remaining)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPrizeNotFound
		}
		return fmt.Errorf("error updating prize: %w", err)
	}
	prize.TotalQuantity = db.Int64Ptr(total)
	prize.RemainingQuantity = db.Int64Ptr(remaining)
	return nil
}

// SetStock applies a stock edit in a single UPDATE so concurrent decrements are not lost
func (r *SQLiteRepository) SetStock(ctx context.Context, id string, change StockChange) (*entities.Prize, error) {
	var (
		query string
		args  []interface{}
	)
	switch {
	case change.Unlimited:
		query = `UPDATE prizes SET total_quantity = NULL, remaining_quantity = NULL WHERE id = ?`
		args = []interface{}{id}
	case change.Total != nil && change.Remaining != nil:
		query = `UPDATE prizes SET total_quantity = ?, remaining_quantity = ? WHERE id = ?`
		args = []interface{}{*change.Total, *change.Remaining, id}
	case change.Total != nil && change.Refill:
		query = `UPDATE prizes SET total_quantity = ?, remaining_quantity = ? WHERE id = ?`
		args = []interface{}{*change.Total, *change.Total, id}
	case change.Total != nil:
		query = `
			UPDATE prizes SET
				total_quantity = ?,
				remaining_quantity = CASE
					WHEN remaining_quantity IS NULL OR remaining_quantity > ? THEN ?
					ELSE remaining_quantity
				END
			WHERE id = ?
		`
		args = []interface{}{*change.Total, *change.Total, *change.Total, id}
	case change.Remaining != nil:
		query = `UPDATE prizes SET remaining_quantity = ?, total_quantity = COALESCE(total_quantity, ?) WHERE id = ?`
		args = []interface{}{*change.Remaining, *change.Remaining, id}
	default:
		return r.Get(ctx, id)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error updating prize stock: %w", err)
	}
	if err := expectOneRow(result); err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

func expectOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrPrizeNotFound
	}
	return nil
}

// Delete removes a prize from the catalog
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM prizes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("error deleting prize: %w", err)
	}
	return expectOneRow(result)
}

// List returns prizes ordered by slot index
func (r *SQLiteRepository) List(ctx context.Context, activeOnly bool) ([]*entities.Prize, error) {
	query := `SELECT ` + prizeColumns + ` FROM prizes`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY slot_index, created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying prizes: %w", err)
	}
	defer rows.Close()

	result := make([]*entities.Prize, 0)
	for rows.Next() {
		prize, err := scanPrize(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning prize row: %w", err)
		}
		result = append(result, prize)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prize rows: %w", err)
	}
	return result, nil
}

// Decrement lowers the remaining quantity by one, floored at zero
func (r *SQLiteRepository) Decrement(ctx context.Context, id string) (*entities.Prize, error) {
	query := `
		UPDATE prizes
		SET remaining_quantity = MAX(remaining_quantity - 1, 0)
		WHERE id = ? AND total_quantity IS NOT NULL AND remaining_quantity IS NOT NULL
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return nil, fmt.Errorf("error decrementing prize inventory: %w", err)
	}
	return r.Get(ctx, id)
}
