package account

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
	sqlite3 "github.com/mattn/go-sqlite3"
)

const accountColumns = `id, phone, name, role, balance, club_id, active, banned, ban_until, ban_reason,
	referrer_id, referral_code, created_at, updated_at`

const entryColumns = `id, account_id, category, amount, description, spin_id, balance_after, created_at`

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

func scanAccount(row rowScanner) (*entities.Account, error) {
	var (
		account                               entities.Account
		role                                  string
		clubID, banUntil, referrerID, refCode sql.NullString
		active, banned                        int
		createdAt, updatedAt                  string
	)

	err := row.Scan(
		&account.ID, &account.Phone, &account.Name, &role, &account.Balance, &clubID,
		&active, &banned, &banUntil, &account.BanReason, &referrerID, &refCode,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	account.Role = entities.Role(role)
	account.ClubID = clubID.String
	account.Active = active == 1
	account.Banned = banned == 1
	account.ReferrerID = referrerID.String
	account.ReferralCode = refCode.String

	if account.BanUntil, err = db.ParseNullTime(banUntil); err != nil {
		return nil, err
	}
	if account.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if account.UpdatedAt, err = db.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	return &account, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// Create inserts a new account
func (r *SQLiteRepository) Create(ctx context.Context, account *entities.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	account.Balance = 0

	query := `INSERT INTO accounts (` + accountColumns + `) VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		account.ID, account.Phone, account.Name, string(account.Role), db.NullString(account.ClubID),
		db.BoolInt(account.Active), db.BoolInt(account.Banned), db.FormatTimePtr(account.BanUntil),
		account.BanReason, db.NullString(account.ReferrerID), db.NullString(account.ReferralCode),
		db.FormatTime(account.CreatedAt), db.FormatTime(account.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateAccount
		}
		return fmt.Errorf("error creating account: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) getBy(ctx context.Context, column, value string) (*entities.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + column + ` = ?`

	account, err := scanAccount(r.db.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("error getting account: %w", err)
	}
	return account, nil
}

// Get retrieves an account by ID
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*entities.Account, error) {
	return r.getBy(ctx, "id", id)
}

// GetByPhone retrieves an account by phone number
func (r *SQLiteRepository) GetByPhone(ctx context.Context, phone string) (*entities.Account, error) {
	return r.getBy(ctx, "phone", phone)
}

// GetByReferralCode retrieves an account by its referral code
func (r *SQLiteRepository) GetByReferralCode(ctx context.Context, code string) (*entities.Account, error) {
	if code == "" {
		return nil, ErrAccountNotFound
	}
	return r.getBy(ctx, "referral_code", code)
}

// Update saves profile fields, keeping the stored balance
func (r *SQLiteRepository) Update(ctx context.Context, account *entities.Account) error {
	account.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE accounts SET
			phone = ?, name = ?, role = ?, club_id = ?, active = ?, banned = ?, ban_until = ?,
			ban_reason = ?, referrer_id = COALESCE(referrer_id, ?), referral_code = ?, updated_at = ?
		WHERE id = ?
		RETURNING balance, referrer_id
	`

	var referrerID sql.NullString
	err := r.db.QueryRowContext(ctx, query,
		account.Phone, account.Name, string(account.Role), db.NullString(account.ClubID),
		db.BoolInt(account.Active), db.BoolInt(account.Banned), db.FormatTimePtr(account.BanUntil),
		account.BanReason, db.NullString(account.ReferrerID), db.NullString(account.ReferralCode),
		db.FormatTime(account.UpdatedAt), account.ID,
	).Scan(&account.Balance, &referrerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAccountNotFound
		}
		if isUniqueViolation(err) {
			return ErrDuplicateAccount
		}
		return fmt.Errorf("error updating account: %w", err)
	}
	account.ReferrerID = referrerID.String
	return nil
}

// SetReferrer records the referrer unless one is already set
func (r *SQLiteRepository) SetReferrer(ctx context.Context, accountID, referrerID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET referrer_id = ?, updated_at = ? WHERE id = ? AND referrer_id IS NULL`,
		referrerID, db.FormatTime(time.Now().UTC()), accountID,
	)
	if err != nil {
		return false, fmt.Errorf("error setting referrer: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error setting referrer: %w", err)
	}
	if affected == 1 {
		return true, nil
	}

	if _, err := r.Get(ctx, accountID); err != nil {
		return false, err
	}
	return false, nil
}

// Delete removes an account and its ledger
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("error deleting account: %w", err)
	}
	if rows, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	} else if rows == 0 {
		return ErrAccountNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_entries WHERE account_id = ?`, id); err != nil {
		return fmt.Errorf("error deleting ledger entries: %w", err)
	}

	return tx.Commit()
}

// List returns accounts matching the filter, oldest first
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) ([]*entities.Account, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.Role != "" {
		conditions = append(conditions, "role = ?")
		args = append(args, string(filter.Role))
	}
	if filter.BannedOnly {
		conditions = append(conditions, "banned = 1")
	}

	query := `SELECT ` + accountColumns + ` FROM accounts`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying accounts: %w", err)
	}
	defer rows.Close()

	result := make([]*entities.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning account row: %w", err)
		}
		result = append(result, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account rows: %w", err)
	}
	return result, nil
}

func insertEntry(ctx context.Context, tx *sql.Tx, entry *entities.LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO ledger_entries (` + entryColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, query,
		entry.ID, entry.AccountID, string(entry.Category), entry.Amount, entry.Description,
		db.NullString(entry.SpinID), entry.BalanceAfter, db.FormatTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("error adding ledger entry: %w", err)
	}
	return nil
}

func accountExists(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Post atomically applies entry.Amount and appends the entry
func (r *SQLiteRepository) Post(ctx context.Context, entry *entities.LedgerEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	// The balance guard makes the debit conditional; a credit always satisfies it
	query := `
		UPDATE accounts
		SET balance = balance + ?, updated_at = ?
		WHERE id = ? AND balance + ? >= 0
		RETURNING balance
	`
	var balanceAfter int64
	err = tx.QueryRowContext(ctx, query,
		entry.Amount, db.FormatTime(time.Now()), entry.AccountID, entry.Amount,
	).Scan(&balanceAfter)
	if errors.Is(err, sql.ErrNoRows) {
		exists, existsErr := accountExists(ctx, tx, entry.AccountID)
		if existsErr != nil {
			return fmt.Errorf("error checking account: %w", existsErr)
		}
		if !exists {
			return ErrAccountNotFound
		}
		return ErrInsufficientBalance
	}
	if err != nil {
		return fmt.Errorf("error updating balance: %w", err)
	}

	entry.BalanceAfter = balanceAfter
	if err := insertEntry(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing ledger entry: %w", err)
	}
	return nil
}

// SetBalance sets an absolute balance and records the delta
func (r *SQLiteRepository) SetBalance(ctx context.Context, accountID string, balance int64, description string) (*entities.LedgerEntry, error) {
	if balance < 0 {
		return nil, ErrInsufficientBalance
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	var current int64
	err = tx.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = ?`, accountID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error reading balance: %w", err)
	}

	delta := balance - current
	if delta == 0 {
		return nil, nil
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?`,
		balance, db.FormatTime(time.Now()), accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("error setting balance: %w", err)
	}

	entry := &entities.LedgerEntry{
		AccountID:    accountID,
		Category:     entities.LedgerManualAdjustment,
		Amount:       delta,
		Description:  description,
		BalanceAfter: balance,
	}
	if err := insertEntry(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing balance adjustment: %w", err)
	}
	return entry, nil
}

// Entries returns ledger entries, newest first
func (r *SQLiteRepository) Entries(ctx context.Context, filter LedgerFilter) ([]*entities.LedgerEntry, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.AccountID != "" {
		conditions = append(conditions, "account_id = ?")
		args = append(args, filter.AccountID)
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, string(filter.Category))
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, db.FormatTime(filter.From))
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "created_at < ?")
		args = append(args, db.FormatTime(filter.To))
	}

	query := `SELECT ` + entryColumns + ` FROM ledger_entries`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying ledger entries: %w", err)
	}
	defer rows.Close()

	result := make([]*entities.LedgerEntry, 0)
	for rows.Next() {
		var (
			entry     entities.LedgerEntry
			category  string
			spinID    sql.NullString
			createdAt string
		)
		err := rows.Scan(
			&entry.ID, &entry.AccountID, &category, &entry.Amount, &entry.Description,
			&spinID, &entry.BalanceAfter, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning ledger row: %w", err)
		}
		entry.Category = entities.LedgerCategory(category)
		entry.SpinID = spinID.String
		if entry.CreatedAt, err = db.ParseTime(createdAt); err != nil {
			return nil, err
		}
		result = append(result, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger rows: %w", err)
	}
	return result, nil
}

// SumEntries returns the sum of all entry amounts for an account
func (r *SQLiteRepository) SumEntries(ctx context.Context, accountID string) (int64, error) {
	var sum int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE account_id = ?`, accountID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("error summing ledger entries: %w", err)
	}
	return sum, nil
}
