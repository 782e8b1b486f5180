package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/velorum-store/ms-go-checkout/app/entity"
)

type OrderRepository struct {
	db DBTX
}

func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) FindByID(ctx context.Context, id uint64) (*entity.Order, error) {
	query := `
		SELECT id, usuario_nombre, usuario_email, email_invitado, estado, total_cents,
			email_confirmacion_enviado, email_confirmacion_fecha, created_at, updated_at
		FROM orders
		WHERE id = ?
	`

	order := &entity.Order{}
	var userName, userEmail, guestEmail sql.NullString
	var emailConfirmationAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&userName,
		&userEmail,
		&guestEmail,
		&order.Status,
		&order.TotalCents,
		&order.EmailConfirmationSent,
		&emailConfirmationAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	order.UserName = stringPtrFromNull(userName)
	order.UserEmail = stringPtrFromNull(userEmail)
	order.GuestEmail = stringPtrFromNull(guestEmail)
	order.EmailConfirmationAt = timePtrFromNull(emailConfirmationAt)

	items, err := r.listItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

// MarkPaid transitions the order to pagado and records the paid total.
// The conditional WHERE makes concurrent duplicate webhook deliveries
// race-safe: exactly one caller observes the first transition.
func (r *OrderRepository) MarkPaid(ctx context.Context, id uint64, totalCents int64, now time.Time) (bool, error) {
	query := `
		UPDATE orders
		SET estado = ?, total_cents = ?, updated_at = ?
		WHERE id = ? AND estado <> ?
	`

	result, err := r.db.ExecContext(ctx, query, entity.OrderStatusPaid, totalCents, now, id, entity.OrderStatusPaid)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// UpdateStatus applies a non-success state transition. A paid order is
// never downgraded.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id uint64, status string, now time.Time) error {
	query := `
		UPDATE orders
		SET estado = ?, updated_at = ?
		WHERE id = ? AND estado <> ?
	`

	_, err := r.db.ExecContext(ctx, query, status, now, id, entity.OrderStatusPaid)
	return err
}

// MarkEmailConfirmationSent flips the confirmation flag once; the resend
// sweep relies on the flag staying false until a send actually succeeded.
func (r *OrderRepository) MarkEmailConfirmationSent(ctx context.Context, id uint64, now time.Time) error {
	query := `
		UPDATE orders
		SET email_confirmacion_enviado = 1, email_confirmacion_fecha = ?, updated_at = ?
		WHERE id = ? AND email_confirmacion_enviado = 0
	`

	_, err := r.db.ExecContext(ctx, query, now, now, id)
	return err
}

// ListPaidWithoutConfirmation feeds the resend sweep: paid orders whose
// confirmation email never went out, oldest first.
func (r *OrderRepository) ListPaidWithoutConfirmation(ctx context.Context, limit int32) ([]*entity.Order, error) {
	query := `
		SELECT id, usuario_nombre, usuario_email, email_invitado, estado, total_cents,
			email_confirmacion_enviado, email_confirmacion_fecha, created_at, updated_at
		FROM orders
		WHERE estado = ? AND email_confirmacion_enviado = 0
		ORDER BY created_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, entity.OrderStatusPaid, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]*entity.Order, 0)
	for rows.Next() {
		order := &entity.Order{}
		var userName, userEmail, guestEmail sql.NullString
		var emailConfirmationAt sql.NullTime

		err := rows.Scan(
			&order.ID,
			&userName,
			&userEmail,
			&guestEmail,
			&order.Status,
			&order.TotalCents,
			&order.EmailConfirmationSent,
			&emailConfirmationAt,
			&order.CreatedAt,
			&order.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		order.UserName = stringPtrFromNull(userName)
		order.UserEmail = stringPtrFromNull(userEmail)
		order.GuestEmail = stringPtrFromNull(guestEmail)
		order.EmailConfirmationAt = timePtrFromNull(emailConfirmationAt)
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, order := range orders {
		items, err := r.listItems(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		order.Items = items
	}

	return orders, nil
}

func (r *OrderRepository) listItems(ctx context.Context, orderID uint64) ([]*entity.OrderItem, error) {
	query := `
		SELECT id, order_id, producto_nombre, cantidad, unit_price_cents, subtotal_cents
		FROM order_items
		WHERE order_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.OrderItem, 0)
	for rows.Next() {
		item := &entity.OrderItem{}
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductName,
			&item.Quantity,
			&item.UnitPriceCents,
			&item.SubtotalCents,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}
