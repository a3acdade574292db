package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/temple-erp/temple-pos/internal/accounting"
	"github.com/temple-erp/temple-pos/internal/inventory"
	"github.com/temple-erp/temple-pos/internal/platform/db"
	"github.com/temple-erp/temple-pos/internal/sequence"
)

// TxRepository exposes transactional operations. Ledger and Inventory return
// stores bound to the same transaction.
type TxRepository interface {
	accounting.SaleReader
	sequence.Store

	GetPaymentMode(ctx context.Context, id int64) (accounting.PaymentMode, error)
	InsertBooking(ctx context.Context, booking Booking) (int64, error)
	InsertItem(ctx context.Context, item BookingItem) (int64, error)
	InsertItemMeta(ctx context.Context, itemID int64, rows []Meta, at time.Time) error
	InsertBookingMeta(ctx context.Context, bookingID int64, rows []Meta, at time.Time) error
	InsertPayment(ctx context.Context, payment Payment) (int64, error)
	GetForUpdate(ctx context.Context, ref Ref) (Booking, error)
	UpdateStatus(ctx context.Context, id int64, status BookingStatus, at time.Time) error

	Ledger() accounting.LedgerStore
	Inventory() inventory.Store
}

// Repository provides PostgreSQL backed persistence for sales bookings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	*sequence.PGStore
	tx        pgx.Tx
	ledger    *accounting.Store
	inventory *inventory.Repository
}

// WithTx runs callback in one read-committed transaction (see db.WithTx).
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{
			PGStore:   sequence.NewStore(tx),
			tx:        tx,
			ledger:    accounting.NewStore(tx),
			inventory: inventory.NewRepository(tx),
		})
	})
}

func (t *txRepo) Ledger() accounting.LedgerStore { return t.ledger }

func (t *txRepo) Inventory() inventory.Store { return t.inventory }

// ============================================================================
// READS
// ============================================================================

const bookingColumns = `b.id, b.booking_number, b.booking_type, b.booking_date, b.booking_status, b.payment_status,
       b.subtotal, b.discount_amount, b.deposit_amount, b.tax_amount, b.total_amount, b.paid_amount,
       b.print_option, COALESCE(b.special_instructions, ''), b.booking_through,
       b.inventory_migration, b.account_migration, b.created_by, b.created_at, b.updated_at,
       COALESCE(u.id, 0), COALESCE(u.name, '')`

const bookingFrom = `FROM bookings b LEFT JOIN users u ON u.id = b.created_by`

// Get loads a sales booking by id or booking number with all children.
func (r *Repository) Get(ctx context.Context, ref Ref) (Booking, error) {
	return getBooking(ctx, r.pool, ref, false)
}

func getBooking(ctx context.Context, q db.DBTX, ref Ref, forUpdate bool) (Booking, error) {
	query := fmt.Sprintf(`SELECT %s %s
WHERE b.booking_type = $1 AND (b.id = $2 OR b.booking_number = $3)
ORDER BY b.id
LIMIT 1`, bookingColumns, bookingFrom)
	if forUpdate {
		query += " FOR UPDATE OF b"
	}
	booking, err := scanBooking(q.QueryRow(ctx, query, BookingTypeSales, ref.ID, ref.Number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, err
	}
	list := []*Booking{&booking}
	if err := loadChildren(ctx, q, list); err != nil {
		return Booking{}, err
	}
	return booking, nil
}

// List returns one page of sales bookings and the total match count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Booking, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	conditions = append(conditions, fmt.Sprintf("b.booking_type = $%d", argPos))
	args = append(args, BookingTypeSales)
	argPos++

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf(`(b.booking_number ILIKE $%d OR EXISTS (
    SELECT 1 FROM booking_meta m
    WHERE m.booking_id = b.id AND m.meta_key = 'devotee_name' AND m.meta_value ILIKE $%d))`, argPos, argPos))
		args = append(args, "%"+filter.Search+"%")
		argPos++
	}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("b.booking_status = $%d", argPos))
		args = append(args, string(filter.Status))
		argPos++
	}

	if filter.PaymentStatus != "" {
		conditions = append(conditions, fmt.Sprintf("b.payment_status = $%d", argPos))
		args = append(args, string(filter.PaymentStatus))
		argPos++
	}

	if filter.FromDate != nil {
		conditions = append(conditions, fmt.Sprintf("b.booking_date >= $%d", argPos))
		args = append(args, *filter.FromDate)
		argPos++
	}

	if filter.ToDate != nil {
		conditions = append(conditions, fmt.Sprintf("b.booking_date <= $%d", argPos))
		args = append(args, *filter.ToDate)
		argPos++
	}

	whereClause := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM bookings b "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s %s
%s
ORDER BY b.created_at DESC, b.id DESC
LIMIT $%d OFFSET $%d`, bookingColumns, bookingFrom, whereClause, argPos, argPos+1)
	args = append(args, filter.PerPage, (filter.Page-1)*filter.PerPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	list := make([]*Booking, len(bookings))
	for i := range bookings {
		list[i] = &bookings[i]
	}
	if err := loadChildren(ctx, r.pool, list); err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

func scanBooking(row pgx.Row) (Booking, error) {
	var (
		b                                             Booking
		status, paymentStatus, printOption            string
		subtotal, discount, deposit, tax, total, paid pgtype.Numeric
		inventoryFlag, accountFlag                    int16
		creatorID                                     int64
		creatorName                                   string
	)
	err := row.Scan(&b.ID, &b.Number, &b.Type, &b.Date, &status, &paymentStatus,
		&subtotal, &discount, &deposit, &tax, &total, &paid,
		&printOption, &b.SpecialInstructions, &b.BookingThrough,
		&inventoryFlag, &accountFlag, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt,
		&creatorID, &creatorName)
	if err != nil {
		return Booking{}, err
	}
	b.Status = BookingStatus(status)
	b.PaymentStatus = PaymentStatus(paymentStatus)
	b.PrintOption = PrintOption(printOption)
	b.Subtotal = db.Decimal(subtotal)
	b.Discount = db.Decimal(discount)
	b.Deposit = db.Decimal(deposit)
	b.Tax = db.Decimal(tax)
	b.Total = db.Decimal(total)
	b.Paid = db.Decimal(paid)
	b.InventoryMigrated = inventoryFlag == 1
	b.AccountMigrated = accountFlag == 1
	if creatorID > 0 {
		b.Creator = &User{ID: creatorID, Name: creatorName}
	}
	return b, nil
}

func loadChildren(ctx context.Context, q db.DBTX, bookings []*Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	ids := make([]int64, len(bookings))
	byID := make(map[int64]*Booking, len(bookings))
	for i, b := range bookings {
		ids[i] = b.ID
		byID[b.ID] = b
	}

	items, err := loadItems(ctx, q, ids)
	if err != nil {
		return err
	}
	for _, item := range items {
		if b, ok := byID[item.BookingID]; ok {
			b.Items = append(b.Items, item)
		}
	}

	rows, err := q.Query(ctx, `SELECT booking_id, meta_key, meta_value, meta_type
FROM booking_meta WHERE booking_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var bookingID int64
		var key, value, typ string
		if err := rows.Scan(&bookingID, &key, &value, &typ); err != nil {
			return err
		}
		meta, err := decodeMeta(key, value, typ)
		if err != nil {
			return err
		}
		if b, ok := byID[bookingID]; ok {
			b.Meta = append(b.Meta, meta)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	payments, err := loadPayments(ctx, q, ids)
	if err != nil {
		return err
	}
	for _, p := range payments {
		if b, ok := byID[p.BookingID]; ok {
			b.Payments = append(b.Payments, p)
		}
	}
	return nil
}

func loadItems(ctx context.Context, q db.DBTX, bookingIDs []int64) ([]BookingItem, error) {
	rows, err := q.Query(ctx, `SELECT id, booking_id, item_type, item_id, deity_id, item_name,
       COALESCE(item_name_secondary, ''), COALESCE(short_code, ''), service_date, quantity,
       unit_price, total_price, status
FROM booking_items WHERE booking_id = ANY($1) ORDER BY id`, bookingIDs)
	if err != nil {
		return nil, err
	}
	var items []BookingItem
	for rows.Next() {
		var item BookingItem
		var unitPrice, totalPrice pgtype.Numeric
		if err := rows.Scan(&item.ID, &item.BookingID, &item.ItemType, &item.ItemID, &item.DeityID, &item.Name,
			&item.NameSecondary, &item.ShortCode, &item.ServiceDate, &item.Quantity,
			&unitPrice, &totalPrice, &item.Status); err != nil {
			rows.Close()
			return nil, err
		}
		item.UnitPrice = db.Decimal(unitPrice)
		item.TotalPrice = db.Decimal(totalPrice)
		items = append(items, item)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}

	itemIDs := make([]int64, len(items))
	index := make(map[int64]int, len(items))
	for i, item := range items {
		itemIDs[i] = item.ID
		index[item.ID] = i
	}
	metaRows, err := q.Query(ctx, `SELECT booking_item_id, meta_key, meta_value, meta_type
FROM booking_item_meta WHERE booking_item_id = ANY($1) ORDER BY created_at, meta_key`, itemIDs)
	if err != nil {
		return nil, err
	}
	defer metaRows.Close()
	for metaRows.Next() {
		var itemID int64
		var key, value, typ string
		if err := metaRows.Scan(&itemID, &key, &value, &typ); err != nil {
			return nil, err
		}
		meta, err := decodeMeta(key, value, typ)
		if err != nil {
			return nil, err
		}
		if i, ok := index[itemID]; ok {
			items[i].Meta = append(items[i].Meta, meta)
		}
	}
	return items, metaRows.Err()
}

func loadPayments(ctx context.Context, q db.DBTX, bookingIDs []int64) ([]Payment, error) {
	rows, err := q.Query(ctx, `SELECT id, booking_id, payment_reference, payment_date, amount, payment_mode_id,
       COALESCE(payment_method, ''), payment_type, payment_status, COALESCE(paid_through, ''), COALESCE(created_by, 0)
FROM booking_payments WHERE booking_id = ANY($1) ORDER BY payment_date DESC, id DESC`, bookingIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []Payment
	for rows.Next() {
		var p Payment
		var amount pgtype.Numeric
		if err := rows.Scan(&p.ID, &p.BookingID, &p.Reference, &p.PaymentDate, &amount, &p.PaymentModeID,
			&p.PaymentMethod, &p.PaymentType, &p.Status, &p.PaidThrough, &p.CreatedBy); err != nil {
			return nil, err
		}
		p.Amount = db.Decimal(amount)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func decodeMeta(key, value, typ string) (Meta, error) {
	metaKey, err := ParseMetaKey(key)
	if err != nil {
		return Meta{}, err
	}
	metaValue, err := ParseMetaValue(MetaType(typ), value)
	if err != nil {
		return Meta{}, err
	}
	return Meta{Key: metaKey, Value: metaValue}, nil
}

// ============================================================================
// WRITES
// ============================================================================

func (t *txRepo) GetPaymentMode(ctx context.Context, id int64) (accounting.PaymentMode, error) {
	return t.ledger.GetPaymentMode(ctx, id)
}

func (t *txRepo) InsertBooking(ctx context.Context, b Booking) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO bookings
(booking_number, booking_type, booking_date, booking_status, payment_status,
 subtotal, discount_amount, deposit_amount, tax_amount, total_amount, paid_amount,
 print_option, special_instructions, booking_through, inventory_migration, account_migration,
 created_by, user_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 0, 0, $15, $15, $16, $16)
RETURNING id`,
		b.Number, b.Type, b.Date, string(b.Status), string(b.PaymentStatus),
		db.Numeric(b.Subtotal), db.Numeric(b.Discount), db.Numeric(b.Deposit), db.Numeric(b.Tax),
		db.Numeric(b.Total), db.Numeric(b.Paid),
		string(b.PrintOption), nullString(b.SpecialInstructions), b.BookingThrough,
		b.CreatedBy, b.CreatedAt).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_bookings_booking_number") {
			return 0, fmt.Errorf("sales: booking number %s already used: %w", b.Number, err)
		}
		return 0, err
	}
	return id, nil
}

func (t *txRepo) InsertItem(ctx context.Context, item BookingItem) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO booking_items
(booking_id, item_type, item_id, deity_id, item_name, item_name_secondary, short_code,
 service_date, quantity, unit_price, total_price, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id`,
		item.BookingID, item.ItemType, item.ItemID, item.DeityID, item.Name,
		nullString(item.NameSecondary), nullString(item.ShortCode),
		item.ServiceDate, item.Quantity, db.Numeric(item.UnitPrice), db.Numeric(item.TotalPrice), item.Status).Scan(&id)
	return id, err
}

func (t *txRepo) InsertItemMeta(ctx context.Context, itemID int64, rows []Meta, at time.Time) error {
	for _, m := range rows {
		_, err := t.tx.Exec(ctx, `INSERT INTO booking_item_meta (booking_item_id, meta_key, meta_value, meta_type, created_at)
VALUES ($1, $2, $3, $4, $5)`, itemID, string(m.Key), m.Value.String(), string(m.Value.Type()), at)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepo) InsertBookingMeta(ctx context.Context, bookingID int64, rows []Meta, at time.Time) error {
	for _, m := range rows {
		_, err := t.tx.Exec(ctx, `INSERT INTO booking_meta (booking_id, meta_key, meta_value, meta_type, created_at)
VALUES ($1, $2, $3, $4, $5)`, bookingID, string(m.Key), m.Value.String(), string(m.Value.Type()), at)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepo) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO booking_payments
(booking_id, payment_date, amount, payment_mode_id, payment_method, payment_reference,
 payment_type, payment_status, paid_through, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id`,
		p.BookingID, p.PaymentDate, db.Numeric(p.Amount), p.PaymentModeID, p.PaymentMethod, p.Reference,
		p.PaymentType, p.Status, p.PaidThrough, p.CreatedBy).Scan(&id)
	return id, err
}

func (t *txRepo) GetForUpdate(ctx context.Context, ref Ref) (Booking, error) {
	return getBooking(ctx, t.tx, ref, true)
}

func (t *txRepo) UpdateStatus(ctx context.Context, id int64, status BookingStatus, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE bookings SET booking_status = $2, updated_at = $3 WHERE id = $1`, id, string(status), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LoadSale maps a booking to the view the ledger poster needs.
func (t *txRepo) LoadSale(ctx context.Context, bookingID int64) (accounting.Sale, error) {
	booking, err := getBooking(ctx, t.tx, Ref{ID: bookingID}, false)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return accounting.Sale{}, accounting.ErrSaleNotFound
		}
		return accounting.Sale{}, err
	}
	return SaleOf(booking), nil
}

func (t *txRepo) MarkAccountMigrated(ctx context.Context, bookingID int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE bookings SET account_migration = 1 WHERE id = $1`, bookingID)
	return err
}

// SaleOf projects a booking for ledger posting. Payments keep their newest
// first order.
func SaleOf(b Booking) accounting.Sale {
	sale := accounting.Sale{
		BookingID:     b.ID,
		BookingNumber: b.Number,
		BookingDate:   b.Date,
		Subtotal:      b.Subtotal,
		Discount:      b.Discount,
		Total:         b.Total,
		Paid:          b.Paid,
	}
	for _, p := range b.Payments {
		sale.Payments = append(sale.Payments, accounting.SalePayment{ID: p.ID, PaymentModeID: p.PaymentModeID, Amount: p.Amount})
	}
	for _, item := range b.Items {
		sale.Items = append(sale.Items, accounting.SaleLine{SaleItemID: item.ItemID, Name: item.Name, Total: item.TotalPrice})
	}
	meta := MetaMap(b.Meta)
	sale.DevoteeName = meta[MetaDevoteeName].String()
	sale.DevoteeNRIC = meta[MetaDevoteeNRIC].String()
	return sale
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
