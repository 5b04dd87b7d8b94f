package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

// orderTables описывает параллельные таблицы одного вида заказов.
type orderTables struct {
	orders          string
	items           string
	counterpartyCol string
	orderFKCol      string
}

func tablesFor(kind domain.OrderKind) (orderTables, error) {
	switch kind {
	case domain.OrderKindCustomer:
		return orderTables{
			orders:          "customer_orders",
			items:           "customer_order_items",
			counterpartyCol: "customer_store_id",
			orderFKCol:      "customer_order_id",
		}, nil
	case domain.OrderKindSupplier:
		return orderTables{
			orders:          "supplier_orders",
			items:           "supplier_order_items",
			counterpartyCol: "supplier_id",
			orderFKCol:      "supplier_order_id",
		}, nil
	default:
		return orderTables{}, fmt.Errorf("%w: unknown order kind %q", domain.ErrValidation, kind)
	}
}

type orderRepository struct {
	tx *sql.Tx
}

func (r *orderRepository) OrderNumberExists(ctx context.Context, kind domain.OrderKind, number string) (bool, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return false, err
	}

	var exists bool
	if err := r.tx.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1 FROM %s WHERE order_number = $1 AND deleted_at IS NULL
		)
	`, t.orders), number).Scan(&exists); err != nil {
		return false, fmt.Errorf("check order number: %w", err)
	}
	return exists, nil
}

func (r *orderRepository) Insert(ctx context.Context, order *domain.Order) error {
	t, err := tablesFor(order.Kind)
	if err != nil {
		return err
	}

	err = r.tx.QueryRowContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (
			order_number, %s, price, tax, shipping_fee, situation,
			delivered_at, canceled_at, note, created_by, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id
	`, t.orders, t.counterpartyCol),
		order.OrderNumber, order.CounterpartyID, order.Price, order.Tax, order.ShippingFee,
		string(order.Situation), order.DeliveredAt, order.CanceledAt, order.Note,
		order.CreatedBy, order.CreatedAt, order.UpdatedAt,
	).Scan(&order.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderNumberTaken
		}
		return fmt.Errorf("insert %s order: %w", order.Kind, err)
	}
	return nil
}

func (r *orderRepository) Get(ctx context.Context, kind domain.OrderKind, id int64) (domain.Order, error) {
	return r.load(ctx, kind, id, false)
}

// Lock читает заказ с блокировкой заголовка: конкурентные изменения одного
// заказа выстраиваются в очередь.
func (r *orderRepository) Lock(ctx context.Context, kind domain.OrderKind, id int64) (domain.Order, error) {
	return r.load(ctx, kind, id, true)
}

func (r *orderRepository) load(ctx context.Context, kind domain.OrderKind, id int64, forUpdate bool) (domain.Order, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return domain.Order{}, err
	}

	query := fmt.Sprintf(`
		SELECT id, order_number, %s, price, tax, shipping_fee, situation,
		       delivered_at, canceled_at, note, created_by, updated_by, deleted_by,
		       created_at, updated_at, deleted_at
		FROM %s
		WHERE id = $1
	`, t.counterpartyCol, t.orders)
	if forUpdate {
		query += " FOR UPDATE"
	}

	order := domain.Order{Kind: kind}
	var situation string
	err = r.tx.QueryRowContext(ctx, query, id).Scan(
		&order.ID, &order.OrderNumber, &order.CounterpartyID,
		&order.Price, &order.Tax, &order.ShippingFee, &situation,
		&order.DeliveredAt, &order.CanceledAt, &order.Note,
		&order.CreatedBy, &order.UpdatedBy, &order.DeletedBy,
		&order.CreatedAt, &order.UpdatedAt, &order.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select %s order: %w", kind, err)
	}
	order.Situation = domain.Situation(situation)

	items, err := r.loadItems(ctx, t, id)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items
	return order, nil
}

func (r *orderRepository) loadItems(ctx context.Context, t orderTables, orderID int64) ([]domain.OrderItem, error) {
	rows, err := r.tx.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, %s, product_id, quantity, price, tax, total_price, total_tax,
		       status, stock_log_id, created_at, updated_at
		FROM %s
		WHERE %s = $1
		ORDER BY id ASC
	`, t.orderFKCol, t.items, t.orderFKCol), orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (domain.OrderItem, error) {
	var (
		item   domain.OrderItem
		status string
	)
	if err := row.Scan(
		&item.ID, &item.OrderID, &item.ProductID, &item.Quantity,
		&item.Price, &item.Tax, &item.TotalPrice, &item.TotalTax,
		&status, &item.StockLogID, &item.CreatedAt, &item.UpdatedAt,
	); err != nil {
		return domain.OrderItem{}, err
	}
	item.Status = domain.Situation(status)
	return item, nil
}

// UpdateHeader перезаписывает изменяемые поля заголовка. Номер заказа и
// аудит создания не трогает.
func (r *orderRepository) UpdateHeader(ctx context.Context, order *domain.Order) error {
	t, err := tablesFor(order.Kind)
	if err != nil {
		return err
	}

	res, err := r.tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s
		SET %s = $1,
		    price = $2,
		    tax = $3,
		    shipping_fee = $4,
		    situation = $5,
		    delivered_at = $6,
		    canceled_at = $7,
		    note = $8,
		    updated_by = $9,
		    updated_at = $10
		WHERE id = $11
	`, t.orders, t.counterpartyCol),
		order.CounterpartyID, order.Price, order.Tax, order.ShippingFee,
		string(order.Situation), order.DeliveredAt, order.CanceledAt, order.Note,
		order.UpdatedBy, order.UpdatedAt, order.ID,
	)
	if err != nil {
		return fmt.Errorf("update %s order: %w", order.Kind, err)
	}
	return expectAffected(res, domain.ErrOrderNotFound)
}

func (r *orderRepository) InsertItem(ctx context.Context, kind domain.OrderKind, item *domain.OrderItem) error {
	t, err := tablesFor(kind)
	if err != nil {
		return err
	}

	if err := r.tx.QueryRowContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (
			%s, product_id, quantity, price, tax, total_price, total_tax,
			status, stock_log_id, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id
	`, t.items, t.orderFKCol),
		item.OrderID, item.ProductID, item.Quantity, item.Price, item.Tax,
		item.TotalPrice, item.TotalTax, string(item.Status), item.StockLogID,
		item.CreatedAt, item.UpdatedAt,
	).Scan(&item.ID); err != nil {
		return fmt.Errorf("insert %s order item: %w", kind, err)
	}
	return nil
}

func (r *orderRepository) UpdateItem(ctx context.Context, kind domain.OrderKind, item *domain.OrderItem) error {
	t, err := tablesFor(kind)
	if err != nil {
		return err
	}

	res, err := r.tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s
		SET quantity = $1,
		    price = $2,
		    tax = $3,
		    total_price = $4,
		    total_tax = $5,
		    status = $6,
		    stock_log_id = $7,
		    updated_at = $8
		WHERE id = $9 AND %s = $10
	`, t.items, t.orderFKCol),
		item.Quantity, item.Price, item.Tax, item.TotalPrice, item.TotalTax,
		string(item.Status), item.StockLogID, item.UpdatedAt, item.ID, item.OrderID,
	)
	if err != nil {
		return fmt.Errorf("update %s order item: %w", kind, err)
	}
	return expectAffected(res, domain.ErrOrderNotFound)
}

func (r *orderRepository) FindItem(ctx context.Context, kind domain.OrderKind, orderID, productID int64) (domain.OrderItem, bool, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return domain.OrderItem{}, false, err
	}

	row := r.tx.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, %s, product_id, quantity, price, tax, total_price, total_tax,
		       status, stock_log_id, created_at, updated_at
		FROM %s
		WHERE %s = $1 AND product_id = $2
		ORDER BY id ASC
		LIMIT 1
		FOR UPDATE
	`, t.orderFKCol, t.items, t.orderFKCol), orderID, productID)

	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.OrderItem{}, false, nil
		}
		return domain.OrderItem{}, false, fmt.Errorf("find %s order item: %w", kind, err)
	}
	return item, true, nil
}

func (r *orderRepository) SoftDelete(ctx context.Context, kind domain.OrderKind, id, actor int64, at time.Time) error {
	t, err := tablesFor(kind)
	if err != nil {
		return err
	}

	res, err := r.tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s
		SET deleted_at = $1, deleted_by = $2
		WHERE id = $3 AND deleted_at IS NULL
	`, t.orders), at, actor, id)
	if err != nil {
		return fmt.Errorf("soft delete %s order: %w", kind, err)
	}
	return expectAffected(res, domain.ErrOrderNotFound)
}

// HardDelete физически удаляет мягко удалённый заказ; позиции уходят каскадом.
func (r *orderRepository) HardDelete(ctx context.Context, kind domain.OrderKind, id int64) error {
	t, err := tablesFor(kind)
	if err != nil {
		return err
	}

	var deletedAt *time.Time
	err = r.tx.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT deleted_at FROM %s WHERE id = $1 FOR UPDATE`, t.orders,
	), id).Scan(&deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrOrderNotFound
		}
		return fmt.Errorf("check %s order before delete: %w", kind, err)
	}
	if deletedAt == nil {
		return domain.ErrOrderNotDeleted
	}

	if _, err := r.tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, t.orders), id); err != nil {
		return fmt.Errorf("hard delete %s order: %w", kind, err)
	}
	return nil
}

func expectAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
