package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"shoppersense/internal/models"
)

const columns = `id, customer_id, age, gender, location, product_category, product_name,
	purchase_amount, quantity, purchase_date, payment_method, metadata, created_at`

var rowNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("shoppersense/transactions"))

// ContentID derives a stable id from the row's content, so importing the
// same row twice yields the same primary key and the second insert is skipped.
func ContentID(tx models.Transaction) string {
	key := strings.Join([]string{
		tx.CustomerID,
		tx.PurchaseDate.UTC().Format(time.RFC3339Nano),
		tx.ProductCategory,
		tx.ProductName,
		tx.PurchaseAmount.String(),
		fmt.Sprint(tx.Quantity),
		tx.PaymentMethod,
		tx.Location,
	}, "\x1f")
	return uuid.NewSHA1(rowNamespace, []byte(key)).String()
}

// prepare fills defaults the schema relies on.
func prepare(tx *models.Transaction, now time.Time) {
	if tx.Quantity <= 0 {
		tx.Quantity = 1
	}
	tx.PurchaseDate = tx.PurchaseDate.UTC()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
}

func encodeMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(b), nil
}

func (s *SQLStore) insertArgs(tx models.Transaction) ([]any, error) {
	meta, err := encodeMetadata(tx.Metadata)
	if err != nil {
		return nil, err
	}
	return []any{
		tx.ID, tx.CustomerID, tx.Age, tx.Gender, tx.Location, tx.ProductCategory, tx.ProductName,
		tx.PurchaseAmount, tx.Quantity, tx.PurchaseDate, tx.PaymentMethod, meta, tx.CreatedAt,
	}, nil
}

const placeholders = "?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?"

// Create inserts one transaction, assigning a fresh id when none is set.
func (s *SQLStore) Create(ctx context.Context, tx *models.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.Must(uuid.NewV7()).String()
	}
	prepare(tx, time.Now().UTC())

	args, err := s.insertArgs(*tx)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("INSERT INTO transactions (%s) VALUES (%s)", columns, placeholders)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("insert transaction %s: %w", tx.ID, ErrDuplicate)
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// BulkCreate inserts txs in one database transaction and returns how many
// rows were new. Rows without an id get their ContentID; duplicates are skipped.
func (s *SQLStore) BulkCreate(ctx context.Context, txs []models.Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin bulk insert: %w", err)
	}
	defer dbtx.Rollback()

	query := fmt.Sprintf("%s transactions (%s) VALUES (%s)", s.dialect.insertIgnore, columns, placeholders)
	stmt, err := dbtx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare bulk insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	inserted := 0
	for i := range txs {
		tx := txs[i]
		prepare(&tx, now)
		if tx.ID == "" {
			tx.ID = ContentID(tx)
		}

		args, err := s.insertArgs(tx)
		if err != nil {
			return 0, err
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, fmt.Errorf("insert row %d: %w", i, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := dbtx.Commit(); err != nil {
		return 0, fmt.Errorf("commit bulk insert: %w", err)
	}
	return inserted, nil
}

// List pushes the filter criteria into SQL. The result matches
// analytics.Filter over the same rows.
func (s *SQLStore) List(ctx context.Context, q models.Query) ([]models.Transaction, error) {
	where, args := whereClause(q.Criteria)

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM transactions WHERE %s", columns, where)
	switch q.Order {
	case models.OldestFirst:
		sb.WriteString(" ORDER BY purchase_date ASC, id ASC")
	case models.NewestFirst:
		sb.WriteString(" ORDER BY purchase_date DESC, id ASC")
	}
	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := []models.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func whereClause(c models.FilterCriteria) (string, []any) {
	conds := []string{"is_deleted = 0"}
	var args []any

	add := func(cond string, arg any) {
		conds = append(conds, cond)
		args = append(args, arg)
	}

	if c.Category != "" {
		add("product_category = ?", c.Category)
	}
	if c.Location != "" {
		add("location = ?", c.Location)
	}
	if c.Gender != "" {
		add("gender = ?", c.Gender)
	}
	if c.StartDate != nil {
		add("purchase_date >= ?", c.StartDate.UTC())
	}
	if c.EndDate != nil {
		add("purchase_date <= ?", c.EndDate.UTC())
	}
	if c.Age != nil {
		add("age >= ?", c.Age.Min)
		if c.Age.Max != nil {
			add("age <= ?", *c.Age.Max)
		}
	}

	return strings.Join(conds, " AND "), args
}

func scanTransaction(rows *sql.Rows) (models.Transaction, error) {
	var (
		tx   models.Transaction
		meta string
	)
	err := rows.Scan(
		&tx.ID, &tx.CustomerID, &tx.Age, &tx.Gender, &tx.Location, &tx.ProductCategory, &tx.ProductName,
		&tx.PurchaseAmount, &tx.Quantity, &tx.PurchaseDate, &tx.PaymentMethod, &meta, &tx.CreatedAt,
	)
	if err != nil {
		return tx, fmt.Errorf("scan transaction: %w", err)
	}

	tx.PurchaseDate = tx.PurchaseDate.UTC()
	if meta != "" && meta != "{}" {
		if err := json.Unmarshal([]byte(meta), &tx.Metadata); err != nil {
			return tx, fmt.Errorf("decode metadata for %s: %w", tx.ID, err)
		}
	}
	return tx, nil
}

func (s *SQLStore) SoftDelete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE transactions SET is_deleted = 1 WHERE id = ? AND is_deleted = 0", id)
	if err != nil {
		return fmt.Errorf("soft delete %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions WHERE is_deleted = 0").Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}
