package sales

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/temple-erp/temple-pos/internal/accounting"
	"github.com/temple-erp/temple-pos/internal/inventory"
	"github.com/temple-erp/temple-pos/internal/sequence"
)

// memoryState is everything a unit of work can touch. It is copied before
// each transaction and restored when the callback fails.
type memoryState struct {
	bookings  map[int64]Booking
	items     []BookingItem
	itemMeta  map[int64][]Meta
	meta      map[int64][]Meta
	payments  []Payment
	balances  map[int64]inventory.Balance
	movements []inventory.Movement
	groups    map[string]accounting.Group
	ledgers   []accounting.Ledger
	entries   []accounting.Entry
	lines     []accounting.EntryItem
	nextID    int64
}

func (s memoryState) clone() memoryState {
	return memoryState{
		bookings:  maps.Clone(s.bookings),
		items:     slices.Clone(s.items),
		itemMeta:  maps.Clone(s.itemMeta),
		meta:      maps.Clone(s.meta),
		payments:  slices.Clone(s.payments),
		balances:  maps.Clone(s.balances),
		movements: slices.Clone(s.movements),
		groups:    maps.Clone(s.groups),
		ledgers:   slices.Clone(s.ledgers),
		entries:   slices.Clone(s.entries),
		lines:     slices.Clone(s.lines),
		nextID:    s.nextID,
	}
}

type memoryRepo struct {
	state       memoryState
	modes       map[int64]accounting.PaymentMode
	boms        map[int64][]inventory.BOMLine
	users       map[int64]string
	itemLedgers map[int64]int64
	settings    map[string]string

	failInsertPayment error
	failUpdateStatus  error
	failGet           error
	txCount           int
}

func newMemoryRepo() *memoryRepo {
	ledgerID := int64(100)
	return &memoryRepo{
		state: memoryState{
			bookings: make(map[int64]Booking),
			itemMeta: make(map[int64][]Meta),
			meta:     make(map[int64][]Meta),
			balances: make(map[int64]inventory.Balance),
			groups:   make(map[string]accounting.Group),
		},
		modes: map[int64]accounting.PaymentMode{
			1: {ID: 1, Name: "Cash", LedgerID: &ledgerID},
		},
		boms:        make(map[int64][]inventory.BOMLine),
		users:       map[int64]string{7: "Counter Staff"},
		itemLedgers: map[int64]int64{11: 201, 12: 202},
		settings: map[string]string{
			accounting.SettingDiscountLedger: "300",
			accounting.SettingDepositLedger:  "400",
		},
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.txCount++
	snapshot := r.state.clone()
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.state = snapshot
		return err
	}
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, ref Ref) (Booking, error) {
	if r.failGet != nil {
		return Booking{}, r.failGet
	}
	return r.find(ref)
}

func (r *memoryRepo) find(ref Ref) (Booking, error) {
	for _, b := range r.state.bookings {
		if b.ID == ref.ID || (ref.Number != "" && b.Number == ref.Number) {
			return r.assemble(b), nil
		}
	}
	return Booking{}, ErrNotFound
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Booking, int, error) {
	var matched []Booking
	for _, b := range r.state.bookings {
		full := r.assemble(b)
		if filter.Search != "" {
			name := MetaMap(full.Meta)[MetaDevoteeName].String()
			if !strings.Contains(strings.ToLower(full.Number), strings.ToLower(filter.Search)) &&
				!strings.Contains(strings.ToLower(name), strings.ToLower(filter.Search)) {
				continue
			}
		}
		if filter.Status != "" && full.Status != filter.Status {
			continue
		}
		if filter.PaymentStatus != "" && full.PaymentStatus != filter.PaymentStatus {
			continue
		}
		if filter.FromDate != nil && full.Date.Before(*filter.FromDate) {
			continue
		}
		if filter.ToDate != nil && full.Date.After(*filter.ToDate) {
			continue
		}
		matched = append(matched, full)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	total := len(matched)
	start := (filter.Page - 1) * filter.PerPage
	if start >= total {
		return nil, total, nil
	}
	end := min(start+filter.PerPage, total)
	return matched[start:end], total, nil
}

func (r *memoryRepo) assemble(b Booking) Booking {
	b.Items, b.Payments = nil, nil
	for _, item := range r.state.items {
		if item.BookingID == b.ID {
			item.Meta = r.state.itemMeta[item.ID]
			b.Items = append(b.Items, item)
		}
	}
	for _, p := range r.state.payments {
		if p.BookingID == b.ID {
			b.Payments = append(b.Payments, p)
		}
	}
	b.Meta = r.state.meta[b.ID]
	if name, ok := r.users[b.CreatedBy]; ok {
		b.Creator = &User{ID: b.CreatedBy, Name: name}
	}
	return b
}

func (r *memoryRepo) id() int64 {
	r.state.nextID++
	return r.state.nextID
}

type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) LockSeries(ctx context.Context, stem string) error { return nil }

func (t *memoryTx) LastCode(ctx context.Context, source sequence.Source, stem string) (string, bool, error) {
	var codes []string
	switch source {
	case sequence.SourceBookings:
		for _, b := range t.repo.state.bookings {
			codes = append(codes, b.Number)
		}
	case sequence.SourcePayments:
		for _, p := range t.repo.state.payments {
			codes = append(codes, p.Reference)
		}
	case sequence.SourceEntries:
		for _, e := range t.repo.state.entries {
			codes = append(codes, e.Code)
		}
	}
	last, found := "", false
	for _, code := range codes {
		if strings.HasPrefix(code, stem) && code > last {
			last, found = code, true
		}
	}
	return last, found, nil
}

func (t *memoryTx) GetPaymentMode(ctx context.Context, id int64) (accounting.PaymentMode, error) {
	mode, ok := t.repo.modes[id]
	if !ok {
		return accounting.PaymentMode{}, accounting.ErrPaymentModeNotFound
	}
	return mode, nil
}

func (t *memoryTx) InsertBooking(ctx context.Context, b Booking) (int64, error) {
	b.ID = t.repo.id()
	t.repo.state.bookings[b.ID] = b
	return b.ID, nil
}

func (t *memoryTx) InsertItem(ctx context.Context, item BookingItem) (int64, error) {
	item.ID = t.repo.id()
	item.Meta = nil
	t.repo.state.items = append(t.repo.state.items, item)
	return item.ID, nil
}

func (t *memoryTx) InsertItemMeta(ctx context.Context, itemID int64, rows []Meta, at time.Time) error {
	t.repo.state.itemMeta[itemID] = append(slices.Clone(t.repo.state.itemMeta[itemID]), rows...)
	return nil
}

func (t *memoryTx) InsertBookingMeta(ctx context.Context, bookingID int64, rows []Meta, at time.Time) error {
	t.repo.state.meta[bookingID] = append(slices.Clone(t.repo.state.meta[bookingID]), rows...)
	return nil
}

func (t *memoryTx) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	if t.repo.failInsertPayment != nil {
		return 0, t.repo.failInsertPayment
	}
	p.ID = t.repo.id()
	t.repo.state.payments = append(t.repo.state.payments, p)
	return p.ID, nil
}

func (t *memoryTx) GetForUpdate(ctx context.Context, ref Ref) (Booking, error) {
	return t.repo.find(ref)
}

func (t *memoryTx) UpdateStatus(ctx context.Context, id int64, status BookingStatus, at time.Time) error {
	if t.repo.failUpdateStatus != nil {
		return t.repo.failUpdateStatus
	}
	b, ok := t.repo.state.bookings[id]
	if !ok {
		return ErrNotFound
	}
	b.Status = status
	b.UpdatedAt = at
	t.repo.state.bookings[id] = b
	return nil
}

func (t *memoryTx) LoadSale(ctx context.Context, bookingID int64) (accounting.Sale, error) {
	b, err := t.repo.find(Ref{ID: bookingID})
	if err != nil {
		return accounting.Sale{}, accounting.ErrSaleNotFound
	}
	return SaleOf(b), nil
}

func (t *memoryTx) MarkAccountMigrated(ctx context.Context, bookingID int64) error {
	b := t.repo.state.bookings[bookingID]
	b.AccountMigrated = true
	t.repo.state.bookings[bookingID] = b
	return nil
}

func (t *memoryTx) Ledger() accounting.LedgerStore { return memoryLedger{tx: t} }

// memoryLedger is the journal side of a memoryTx.
type memoryLedger struct {
	tx *memoryTx
}

func (m memoryLedger) state() *memoryState { return &m.tx.repo.state }

func (m memoryLedger) LockSeries(ctx context.Context, stem string) error { return nil }

func (m memoryLedger) LastCode(ctx context.Context, source sequence.Source, stem string) (string, bool, error) {
	return m.tx.LastCode(ctx, source, stem)
}

func (m memoryLedger) GetPaymentMode(ctx context.Context, id int64) (accounting.PaymentMode, error) {
	return m.tx.GetPaymentMode(ctx, id)
}

func (m memoryLedger) SaleItemLedger(ctx context.Context, saleItemID int64) (int64, bool, error) {
	id, ok := m.tx.repo.itemLedgers[saleItemID]
	return id, ok, nil
}

func (m memoryLedger) Settings(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string)
	for _, key := range keys {
		if v, ok := m.tx.repo.settings[key]; ok {
			out[key] = v
		}
	}
	return out, nil
}

func (m memoryLedger) LockGroup(ctx context.Context, code string) error { return nil }

func (m memoryLedger) UpsertGroup(ctx context.Context, group accounting.Group) (int64, error) {
	if existing, ok := m.state().groups[group.Code]; ok {
		return existing.ID, nil
	}
	group.ID = m.tx.repo.id()
	m.state().groups[group.Code] = group
	return group.ID, nil
}

func (m memoryLedger) FindLedger(ctx context.Context, groupID int64, name string) (int64, bool, error) {
	for _, l := range m.state().ledgers {
		if l.GroupID == groupID && l.Name == name {
			return l.ID, true, nil
		}
	}
	return 0, false, nil
}

func (m memoryLedger) MaxRightCode(ctx context.Context, groupID int64, leftCode string) (string, bool, error) {
	last := ""
	for _, l := range m.state().ledgers {
		if l.GroupID == groupID && l.LeftCode == leftCode && l.RightCode > last {
			last = l.RightCode
		}
	}
	return last, last != "", nil
}

func (m memoryLedger) UpsertLedger(ctx context.Context, ledger accounting.Ledger) (int64, error) {
	if id, ok, _ := m.FindLedger(ctx, ledger.GroupID, ledger.Name); ok {
		return id, nil
	}
	ledger.ID = m.tx.repo.id()
	m.state().ledgers = append(m.state().ledgers, ledger)
	return ledger.ID, nil
}

func (m memoryLedger) InsertEntry(ctx context.Context, entry accounting.Entry) (int64, error) {
	for _, existing := range m.state().entries {
		if existing.SourceRef == entry.SourceRef {
			return 0, accounting.ErrAlreadyPosted
		}
	}
	entry.ID = m.tx.repo.id()
	entry.Items = nil
	m.state().entries = append(m.state().entries, entry)
	return entry.ID, nil
}

func (m memoryLedger) InsertEntryItems(ctx context.Context, entryID int64, items []accounting.EntryItem) error {
	for _, item := range items {
		item.EntryID = entryID
		m.state().lines = append(m.state().lines, item)
	}
	return nil
}

func (r *memoryRepo) entryLines(entryID int64) []accounting.EntryItem {
	var out []accounting.EntryItem
	for _, line := range r.state.lines {
		if line.EntryID == entryID {
			out = append(out, line)
		}
	}
	return out
}

func (t *memoryTx) Inventory() inventory.Store { return memoryInventory{repo: t.repo} }

type memoryInventory struct {
	repo *memoryRepo
}

func (m memoryInventory) GetBOM(ctx context.Context, saleItemID int64) ([]inventory.BOMLine, error) {
	return m.repo.boms[saleItemID], nil
}

func (m memoryInventory) GetBalanceForUpdate(ctx context.Context, productID int64) (inventory.Balance, error) {
	if bal, ok := m.repo.state.balances[productID]; ok {
		return bal, nil
	}
	return inventory.Balance{ProductID: productID}, inventory.ErrBalanceNotFound
}

func (m memoryInventory) UpsertBalance(ctx context.Context, balance inventory.Balance) error {
	m.repo.state.balances[balance.ProductID] = balance
	return nil
}

func (m memoryInventory) InsertMovement(ctx context.Context, movement inventory.Movement) (int64, error) {
	movement.ID = m.repo.id()
	m.repo.state.movements = append(m.repo.state.movements, movement)
	return movement.ID, nil
}

func (m memoryInventory) ListOpenMovements(ctx context.Context, bookingID int64) ([]inventory.Movement, error) {
	var out []inventory.Movement
	for _, mv := range m.repo.state.movements {
		if mv.BookingID == bookingID && mv.Type == inventory.MovementOut && mv.ReversedBy == 0 {
			out = append(out, mv)
		}
	}
	return out, nil
}

func (m memoryInventory) MarkReversed(ctx context.Context, movementID, reversalID int64) error {
	for i := range m.repo.state.movements {
		if m.repo.state.movements[i].ID == movementID {
			m.repo.state.movements[i].ReversedBy = reversalID
			return nil
		}
	}
	return errors.New("movement not found")
}

func (m memoryInventory) SetInventoryMigrated(ctx context.Context, bookingID int64, migrated bool) error {
	b := m.repo.state.bookings[bookingID]
	b.InventoryMigrated = migrated
	m.repo.state.bookings[bookingID] = b
	return nil
}
