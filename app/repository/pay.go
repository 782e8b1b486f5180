package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/velorum-store/ms-go-checkout/app/entity"
)

var ErrPayAlreadyExists = errors.New("pay record already exists")

type PayRepository struct {
	db DBTX
}

func NewPayRepository(db DBTX) *PayRepository {
	return &PayRepository{db: db}
}

// Create inserts the applied-payment row. The unique key on
// (order_id, provider_payment_id) turns duplicate webhook deliveries into
// ErrPayAlreadyExists instead of double bookkeeping.
func (r *PayRepository) Create(ctx context.Context, pay *entity.Pay) error {
	query := `
		INSERT INTO pays (
			order_id, reference, provider_payment_id, estado, status_detail,
			amount_cents, payment_method_id, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		pay.OrderID,
		pay.Reference,
		pay.ProviderPaymentID,
		pay.Status,
		pay.StatusDetail,
		pay.AmountCents,
		pay.PaymentMethodID,
		pay.CreatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrPayAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	pay.ID = uint64(id)
	return nil
}

func (r *PayRepository) FindLatestByOrderID(ctx context.Context, orderID uint64) (*entity.Pay, error) {
	query := `
		SELECT id, order_id, reference, provider_payment_id, estado, status_detail,
			amount_cents, payment_method_id, created_at
		FROM pays
		WHERE order_id = ?
		ORDER BY id DESC
		LIMIT 1
	`

	pay := &entity.Pay{}
	err := r.db.QueryRowContext(ctx, query, orderID).Scan(
		&pay.ID,
		&pay.OrderID,
		&pay.Reference,
		&pay.ProviderPaymentID,
		&pay.Status,
		&pay.StatusDetail,
		&pay.AmountCents,
		&pay.PaymentMethodID,
		&pay.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return pay, nil
}
