package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

type productRepository struct {
	tx *sql.Tx
}

// Lock читает товар с блокировкой строки: параллельные списания одного
// товара ждут друг друга и видят актуальный остаток.
func (r *productRepository) Lock(ctx context.Context, id int64) (domain.Product, error) {
	var p domain.Product
	err := r.tx.QueryRowContext(ctx, `
		SELECT id, name, stock
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&p.ID, &p.Name, &p.Stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("lock product: %w", err)
	}
	return p, nil
}

func (r *productRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := r.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check product exists: %w", err)
	}
	return exists, nil
}

func (r *productRepository) UpdateStock(ctx context.Context, id, stock int64) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE products
		SET stock = $2, updated_at = NOW()
		WHERE id = $1
	`, id, stock)
	if err != nil {
		return fmt.Errorf("update product stock: %w", err)
	}
	return expectAffected(res, domain.ErrProductNotFound)
}

type counterpartyRepository struct {
	tx *sql.Tx
}

func (r *counterpartyRepository) Exists(ctx context.Context, kind domain.OrderKind, id int64) (bool, error) {
	var table string
	switch kind {
	case domain.OrderKindCustomer:
		table = "customer_stores"
	case domain.OrderKindSupplier:
		table = "suppliers"
	default:
		return false, fmt.Errorf("%w: unknown order kind %q", domain.ErrValidation, kind)
	}

	var exists bool
	if err := r.tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, table), id,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check %s: %w", table, err)
	}
	return exists, nil
}

// stockLogRepository пишет только INSERT: записи журнала неизменяемы.
type stockLogRepository struct {
	tx *sql.Tx
}

func (r *stockLogRepository) Append(ctx context.Context, entry *domain.StockLogEntry) error {
	var (
		orderKind sql.NullString
		orderID   sql.NullInt64
	)
	if entry.Order != nil {
		orderKind = sql.NullString{String: string(entry.Order.Kind), Valid: true}
		orderID = sql.NullInt64{Int64: entry.Order.ID, Valid: true}
	}

	if err := r.tx.QueryRowContext(ctx, `
		INSERT INTO stock_logs (
			product_id, order_kind, order_id, quantity, current_stock,
			reason, note, created_by, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id
	`,
		entry.ProductID, orderKind, orderID, entry.Quantity, entry.CurrentStock,
		string(entry.Reason), entry.Note, entry.CreatedBy, entry.CreatedAt,
	).Scan(&entry.ID); err != nil {
		return fmt.Errorf("append stock log: %w", err)
	}
	return nil
}

const stockLogColumns = `id, product_id, order_kind, order_id, quantity, current_stock, reason, note, created_by, created_at`

func (r *stockLogRepository) ListByProduct(ctx context.Context, productID int64, limit int) ([]domain.StockLogEntry, error) {
	query := `SELECT ` + stockLogColumns + `
		FROM stock_logs
		WHERE product_id = $1
		ORDER BY id DESC`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.tx.QueryContext(ctx, query+" LIMIT $2", productID, limit)
	} else {
		rows, err = r.tx.QueryContext(ctx, query, productID)
	}
	if err != nil {
		return nil, fmt.Errorf("list stock logs by product: %w", err)
	}
	return scanStockLogs(rows)
}

func (r *stockLogRepository) ListByOrder(ctx context.Context, ref domain.OrderRef) ([]domain.StockLogEntry, error) {
	rows, err := r.tx.QueryContext(ctx, `SELECT `+stockLogColumns+`
		FROM stock_logs
		WHERE order_kind = $1 AND order_id = $2
		ORDER BY id ASC`, string(ref.Kind), ref.ID)
	if err != nil {
		return nil, fmt.Errorf("list stock logs by order: %w", err)
	}
	return scanStockLogs(rows)
}

func scanStockLogs(rows *sql.Rows) ([]domain.StockLogEntry, error) {
	defer rows.Close()

	result := make([]domain.StockLogEntry, 0)
	for rows.Next() {
		var (
			entry     domain.StockLogEntry
			orderKind sql.NullString
			orderID   sql.NullInt64
			reason    string
		)
		if err := rows.Scan(
			&entry.ID, &entry.ProductID, &orderKind, &orderID,
			&entry.Quantity, &entry.CurrentStock, &reason, &entry.Note,
			&entry.CreatedBy, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan stock log: %w", err)
		}
		entry.Reason = domain.StockReason(reason)
		if orderKind.Valid && orderID.Valid {
			entry.Order = &domain.OrderRef{Kind: domain.OrderKind(orderKind.String), ID: orderID.Int64}
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock logs: %w", err)
	}
	return result, nil
}

var (
	_ domain.ProductRepository      = (*productRepository)(nil)
	_ domain.CounterpartyRepository = (*counterpartyRepository)(nil)
	_ domain.StockLogRepository     = (*stockLogRepository)(nil)
)
