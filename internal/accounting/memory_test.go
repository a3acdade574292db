package accounting

import (
	"context"
	"sort"
	"strings"

	"github.com/temple-erp/temple-pos/internal/sequence"
)

type memoryStore struct {
	sales        map[int64]Sale
	modes        map[int64]PaymentMode
	itemLedgers  map[int64]int64
	settings     map[string]string
	groups       map[string]Group
	ledgers      []Ledger
	entries      []Entry
	items        []EntryItem
	migrated     map[int64]bool
	lockedGroups []string
	nextID       int64
	failInsert   error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		sales:       make(map[int64]Sale),
		modes:       make(map[int64]PaymentMode),
		itemLedgers: make(map[int64]int64),
		settings:    make(map[string]string),
		groups:      make(map[string]Group),
		migrated:    make(map[int64]bool),
	}
}

func (m *memoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memoryStore) LoadSale(ctx context.Context, bookingID int64) (Sale, error) {
	sale, ok := m.sales[bookingID]
	if !ok {
		return Sale{}, ErrSaleNotFound
	}
	return sale, nil
}

func (m *memoryStore) MarkAccountMigrated(ctx context.Context, bookingID int64) error {
	m.migrated[bookingID] = true
	return nil
}

func (m *memoryStore) LockSeries(ctx context.Context, stem string) error { return nil }

func (m *memoryStore) LastCode(ctx context.Context, source sequence.Source, stem string) (string, bool, error) {
	var codes []string
	for _, entry := range m.entries {
		if strings.HasPrefix(entry.Code, stem) {
			codes = append(codes, entry.Code)
		}
	}
	if len(codes) == 0 {
		return "", false, nil
	}
	sort.Strings(codes)
	return codes[len(codes)-1], true, nil
}

func (m *memoryStore) GetPaymentMode(ctx context.Context, id int64) (PaymentMode, error) {
	mode, ok := m.modes[id]
	if !ok {
		return PaymentMode{}, ErrPaymentModeNotFound
	}
	return mode, nil
}

func (m *memoryStore) SaleItemLedger(ctx context.Context, saleItemID int64) (int64, bool, error) {
	id, ok := m.itemLedgers[saleItemID]
	return id, ok, nil
}

func (m *memoryStore) Settings(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string)
	for _, key := range keys {
		if v, ok := m.settings[key]; ok {
			out[key] = v
		}
	}
	return out, nil
}

func (m *memoryStore) LockGroup(ctx context.Context, code string) error {
	m.lockedGroups = append(m.lockedGroups, code)
	return nil
}

func (m *memoryStore) UpsertGroup(ctx context.Context, group Group) (int64, error) {
	if existing, ok := m.groups[group.Code]; ok {
		return existing.ID, nil
	}
	group.ID = m.id()
	m.groups[group.Code] = group
	return group.ID, nil
}

func (m *memoryStore) FindLedger(ctx context.Context, groupID int64, name string) (int64, bool, error) {
	for _, l := range m.ledgers {
		if l.GroupID == groupID && l.Name == name {
			return l.ID, true, nil
		}
	}
	return 0, false, nil
}

func (m *memoryStore) MaxRightCode(ctx context.Context, groupID int64, leftCode string) (string, bool, error) {
	max := ""
	for _, l := range m.ledgers {
		if l.GroupID == groupID && l.LeftCode == leftCode && l.RightCode > max {
			max = l.RightCode
		}
	}
	return max, max != "", nil
}

func (m *memoryStore) UpsertLedger(ctx context.Context, ledger Ledger) (int64, error) {
	if id, ok, _ := m.FindLedger(ctx, ledger.GroupID, ledger.Name); ok {
		return id, nil
	}
	ledger.ID = m.id()
	m.ledgers = append(m.ledgers, ledger)
	return ledger.ID, nil
}

func (m *memoryStore) InsertEntry(ctx context.Context, entry Entry) (int64, error) {
	if m.failInsert != nil {
		return 0, m.failInsert
	}
	for _, existing := range m.entries {
		if existing.SourceRef == entry.SourceRef {
			return 0, ErrAlreadyPosted
		}
	}
	entry.ID = m.id()
	entry.Items = nil
	m.entries = append(m.entries, entry)
	return entry.ID, nil
}

func (m *memoryStore) InsertEntryItems(ctx context.Context, entryID int64, items []EntryItem) error {
	for _, item := range items {
		item.EntryID = entryID
		m.items = append(m.items, item)
	}
	return nil
}

func (m *memoryStore) itemsFor(entryID int64) []EntryItem {
	var out []EntryItem
	for _, item := range m.items {
		if item.EntryID == entryID {
			out = append(out, item)
		}
	}
	return out
}
