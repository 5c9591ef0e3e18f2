package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"expensebook/internal/core"
	"expensebook/internal/log"
)

var (
	ErrEmailTaken     = errors.New("email already registered")
	ErrUserNotFound   = errors.New("user not found")
	ErrRecordNotFound = errors.New("record not found")
	ErrBudgetNotFound = errors.New("no budgets found")
)

// User is an account of the reference backend.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// SQLiteRepository stores users, expense records and budgets.
type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	db, err := OpenSQLite(dbPath, migrationsFS)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &SQLiteRepository{
		db:     db,
		logger: logger.WithComponent(log.ComponentStorage),
		now:    time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, email, passwordHash string) (User, error) {
	created := r.now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (email_address, password_hash, created_at) VALUES (?, ?, ?)`,
		email, passwordHash, created.UnixNano())
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return User{ID: id, Email: email, PasswordHash: passwordHash, CreatedAt: created}, nil
}

func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (User, error) {
	var (
		u       User
		created int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email_address, password_hash, created_at FROM users WHERE email_address = ?`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = time.Unix(0, created).UTC()
	return u, nil
}

func (r *SQLiteRepository) CreateRecord(ctx context.Context, userID int64, rec core.ExpenseRecord) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO records (user_id, record_type, category, note, amount, time, date)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, string(rec.RecordType), rec.Category, rec.Note, rec.Amount.String(), rec.Time.String(), rec.Date.String())
	if err != nil {
		return 0, fmt.Errorf("create record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create record: %w", err)
	}

	r.logger.InfoContext(ctx, "Expense record saved",
		log.NewFields().WithRecord(id, rec.Category, rec.Amount.String()).ToSlice()...)
	return id, nil
}

// ListRecords returns the records of a user in insertion order.
func (r *SQLiteRepository) ListRecords(ctx context.Context, userID int64, email string) ([]core.ExpenseRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, record_type, category, note, amount, time, date
		 FROM records WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []core.ExpenseRecord
	for rows.Next() {
		var (
			rec                             core.ExpenseRecord
			recordType, amount, clock, date string
		)
		if err := rows.Scan(&rec.ID, &recordType, &rec.Category, &rec.Note, &amount, &clock, &date); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.RecordType = core.RecordType(recordType)
		rec.EmailAddress = email
		if d, err := core.ParseAmount(amount); err == nil {
			rec.Amount = core.NewAmount(d)
		} else {
			rec.Amount = core.InvalidAmount(amount)
		}
		rec.Time, _ = core.ParseTimeOfDay(clock)
		rec.Date, _ = core.ParseDate(date)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return out, nil
}

// UpdateRecord replaces the editable fields of a record owned by userID.
func (r *SQLiteRepository) UpdateRecord(ctx context.Context, userID int64, rec core.ExpenseRecord) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE records SET record_type = ?, category = ?, note = ?, amount = ?, time = ?, date = ?
		 WHERE id = ? AND user_id = ?`,
		string(rec.RecordType), rec.Category, rec.Note, rec.Amount.String(), rec.Time.String(), rec.Date.String(),
		rec.ID, userID)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return expectOneRow(res, ErrRecordNotFound)
}

// DeleteRecord removes a record owned by userID. Records of other users are
// reported as missing.
func (r *SQLiteRepository) DeleteRecord(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return expectOneRow(res, ErrRecordNotFound)
}

// UpsertBudget stores the limit for (user, month, year), refreshing updated_at
// so the budget becomes the latest one.
func (r *SQLiteRepository) UpsertBudget(ctx context.Context, userID int64, b core.Budget) (core.Budget, error) {
	updated := r.now().UTC()
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO budgets (user_id, budget, month, year, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, month, year) DO UPDATE SET budget = excluded.budget, updated_at = excluded.updated_at
		 RETURNING id`,
		userID, b.Limit.StringFixed(2), b.Month, b.Year, updated.UnixNano()).
		Scan(&b.ID)
	if err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", err)
	}
	b.UpdatedAt = updated
	b.Limit = b.Limit.Round(2)
	return b, nil
}

// LatestBudget returns the most recently updated budget of a user.
func (r *SQLiteRepository) LatestBudget(ctx context.Context, userID int64, email string) (core.Budget, error) {
	var (
		b       core.Budget
		limit   string
		updated int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, budget, month, year, updated_at FROM budgets
		 WHERE user_id = ? ORDER BY updated_at DESC, id DESC LIMIT 1`, userID).
		Scan(&b.ID, &limit, &b.Month, &b.Year, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, ErrBudgetNotFound
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("latest budget: %w", err)
	}
	b.Limit, err = decimal.NewFromString(limit)
	if err != nil {
		return core.Budget{}, fmt.Errorf("latest budget: invalid stored limit %q: %w", limit, err)
	}
	b.UpdatedAt = time.Unix(0, updated).UTC()
	b.EmailAddress = email
	return b, nil
}

func expectOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
