package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-catering-orders/internal/apperr"
	"github.com/ariefcatur/go-catering-orders/internal/catalog"
	"github.com/ariefcatur/go-catering-orders/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	orderNumberConstraint = "orders_order_number_key"
	maxNumberAttempts     = 3
)

// Repo is the order ledger: the only writer of the orders table.
type Repo struct {
	DB      *pgxpool.Pool
	Catalog catalog.Reader
	Timeout time.Duration
}

var ErrSessionAlreadyAttached = errors.New("order already has a checkout session")

const orderColumns = `id::text, order_number, status, first_name, last_name, phone, email, address,
	items_json::text, total_amount::text, currency, external_session_ref, external_payment_ref,
	COALESCE(payment_method, ''), admin_note, test_mode, created_at, updated_at`

const selectOrder = `SELECT ` + orderColumns + ` FROM orders`

func (r *Repo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.Timeout)
}

// Create prices the cart and inserts the order in one transaction.
// The price lookup and the insert share a connection, released on every path.
func (r *Repo) Create(ctx context.Context, nw NewOrder) (Order, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	for attempt := 1; ; attempt++ {
		o, err := r.createTx(ctx, nw)
		if err == nil {
			return o, nil
		}
		if nw.NumberFn != nil && attempt < maxNumberAttempts && postgres.IsUniqueViolation(err, orderNumberConstraint) {
			continue
		}
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return Order{}, err
		}
		if postgres.IsDataOutOfRange(err) {
			return Order{}, apperr.Validation("order value out of range")
		}
		return Order{}, apperr.Persistence("create order", err)
	}
}

func (r *Repo) createTx(ctx context.Context, nw NewOrder) (Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// hitung harga dari menu_items, jangan percaya client
	items, err := r.Catalog.ActiveItems(ctx, tx, catalog.IDs(catalog.Normalize(nw.Cart)))
	if err != nil {
		return Order{}, apperr.Upstream("catalog lookup failed", err)
	}
	lines, total, err := PriceCart(nw, items)
	if err != nil {
		return Order{}, err
	}

	o := Order{
		ID:            uuid.NewString(),
		Status:        nw.Status,
		Customer:      nw.Customer.Normalized(),
		Items:         lines,
		TotalAmount:   total,
		Currency:      nw.Currency,
		PaymentMethod: nw.PaymentMethod,
		TestMode:      nw.TestMode,
	}
	if nw.NumberFn != nil {
		n := nw.NumberFn()
		o.OrderNumber = &n
	}
	itemsJSON, err := json.Marshal(lines)
	if err != nil {
		return Order{}, err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (id, order_number, status, first_name, last_name, phone, email, address,
			items_json, total_amount, currency, payment_method, test_mode)
		VALUES ($1::text::uuid, $2, $3, $4, $5, $6, $7, $8, $9::text::jsonb, $10::text::numeric, $11, $12, $13)
		RETURNING created_at, updated_at`,
		o.ID, o.OrderNumber, string(o.Status),
		o.Customer.FirstName, o.Customer.LastName, o.Customer.Phone, o.Customer.Email, o.Customer.Address,
		string(itemsJSON), total.StringFixed(2), o.Currency, o.PaymentMethod, o.TestMode,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Order{}, apperr.NotFound("order not found")
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	o, err := scanOrder(r.DB.QueryRow(ctx, selectOrder+` WHERE id = $1::text::uuid`, id))
	return o, lookupErr(err)
}

func (r *Repo) FindBySession(ctx context.Context, sessionRef string) (Order, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	o, err := scanOrder(r.DB.QueryRow(ctx, selectOrder+` WHERE external_session_ref = $1`, sessionRef))
	return o, lookupErr(err)
}

// List returns orders newest first, optionally only those in one status.
func (r *Repo) List(ctx context.Context, status *Status) ([]Order, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var (
		rows pgx.Rows
		err  error
	)
	if status != nil {
		rows, err = r.DB.Query(ctx, selectOrder+` WHERE status = $1 ORDER BY created_at DESC`, string(*status))
	} else {
		rows, err = r.DB.Query(ctx, selectOrder+` ORDER BY created_at DESC`)
	}
	if err != nil {
		return nil, apperr.Persistence("list orders", err)
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, apperr.Persistence("list orders", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("list orders", err)
	}
	return out, nil
}

// AttachSession records the processor session on the order. The reference is
// written once; attaching the same value again is a no-op.
func (r *Repo) AttachSession(ctx context.Context, orderID, sessionRef string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET external_session_ref = $2, updated_at = now()
		WHERE id = $1::text::uuid AND external_session_ref IS NULL`, orderID, sessionRef)
	if err != nil {
		return apperr.Persistence("attach session", err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	o, err := r.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.ExternalSessionRef != nil && *o.ExternalSessionRef == sessionRef {
		return nil
	}
	return ErrSessionAlreadyAttached
}

// MarkPaid applies a verified payment. The order is located by the metadata id
// first and by session reference second, then locked. pending_payment and
// cancelled move to paid; the payment reference is kept from the first writer.
// It returns the status the order had before this call.
func (r *Repo) MarkPaid(ctx context.Context, c Confirmation) (Order, Status, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, "", apperr.Persistence("confirm payment", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		o     Order
		found bool
	)
	if _, perr := uuid.Parse(c.OrderID); perr == nil {
		o, err = scanOrder(tx.QueryRow(ctx, selectOrder+` WHERE id = $1::text::uuid FOR UPDATE`, c.OrderID))
		switch {
		case err == nil:
			found = true
		case !errors.Is(err, pgx.ErrNoRows):
			return Order{}, "", apperr.Persistence("confirm payment", err)
		}
	}
	if !found && c.SessionRef != "" {
		o, err = scanOrder(tx.QueryRow(ctx, selectOrder+` WHERE external_session_ref = $1 FOR UPDATE`, c.SessionRef))
		switch {
		case err == nil:
			found = true
		case !errors.Is(err, pgx.ErrNoRows):
			return Order{}, "", apperr.Persistence("confirm payment", err)
		}
	}
	if !found {
		return Order{}, "", apperr.NotFound("order not found")
	}

	prev, next := o.Status, o.Status
	if Payable(prev) {
		next = StatusPaid
	}

	o, err = scanOrder(tx.QueryRow(ctx, `
		UPDATE orders SET
			status = $2,
			external_payment_ref = COALESCE(external_payment_ref, NULLIF($3, '')),
			external_session_ref = COALESCE(external_session_ref, NULLIF($4, '')),
			updated_at = now()
		WHERE id = $1::text::uuid
		RETURNING `+orderColumns, o.ID, string(next), c.PaymentRef, c.SessionRef))
	if err != nil {
		return Order{}, "", apperr.Persistence("confirm payment", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, "", apperr.Persistence("confirm payment", err)
	}
	return o, prev, nil
}

// Update applies a merge patch under a row lock. guard, when non-nil, vets the
// status change against the current status. It returns the updated order and
// the status it had before.
func (r *Repo) Update(ctx context.Context, id string, p Patch, guard Guard) (Order, Status, error) {
	if err := p.Validate(); err != nil {
		return Order{}, "", err
	}
	if _, err := uuid.Parse(id); err != nil {
		return Order{}, "", apperr.NotFound("order not found")
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, "", apperr.Persistence("update order", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := scanOrder(tx.QueryRow(ctx, selectOrder+` WHERE id = $1::text::uuid FOR UPDATE`, id))
	if err != nil {
		return Order{}, "", lookupErr(err)
	}
	from := o.Status
	if p.Status != nil && guard != nil {
		if err := guard(from, *p.Status); err != nil {
			return Order{}, "", err
		}
	}
	p.Apply(&o)

	o, err = scanOrder(tx.QueryRow(ctx, `
		UPDATE orders SET
			status = $2, admin_note = $3,
			first_name = $4, last_name = $5, phone = $6, email = $7, address = $8,
			updated_at = now()
		WHERE id = $1::text::uuid
		RETURNING `+orderColumns,
		o.ID, string(o.Status), o.AdminNote,
		o.Customer.FirstName, o.Customer.LastName, o.Customer.Phone, o.Customer.Email, o.Customer.Address))
	if err != nil {
		return Order{}, "", apperr.Persistence("update order", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, "", apperr.Persistence("update order", err)
	}
	return o, from, nil
}

func lookupErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return apperr.NotFound("order not found")
	default:
		return apperr.Persistence("load order", err)
	}
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o         Order
		status    string
		itemsJSON string
		tot       string
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &status,
		&o.Customer.FirstName, &o.Customer.LastName, &o.Customer.Phone, &o.Customer.Email, &o.Customer.Address,
		&itemsJSON, &tot, &o.Currency, &o.ExternalSessionRef, &o.ExternalPaymentRef,
		&o.PaymentMethod, &o.AdminNote, &o.TestMode, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	if err := json.Unmarshal([]byte(itemsJSON), &o.Items); err != nil {
		return Order{}, fmt.Errorf("order %s items: %w", o.ID, err)
	}
	if o.TotalAmount, err = decimal.NewFromString(tot); err != nil {
		return Order{}, fmt.Errorf("order %s total: %w", o.ID, err)
	}
	return o, nil
}
