package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/temple-erp/temple-pos/internal/accounting"
	"github.com/temple-erp/temple-pos/internal/app"
	"github.com/temple-erp/temple-pos/internal/auth"
)

const devTokenTTL = 12 * time.Hour

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	fmt.Println("→ Seeding users...")
	if err := inTx(ctx, pool, seedUsers); err != nil {
		log.Fatalf("seed users: %v", err)
	}
	fmt.Println("→ Seeding chart of accounts...")
	if err := inTx(ctx, pool, seedAccounts); err != nil {
		log.Fatalf("seed accounts: %v", err)
	}
	fmt.Println("→ Seeding sale items and stock...")
	if err := inTx(ctx, pool, seedCatalogue); err != nil {
		log.Fatalf("seed catalogue: %v", err)
	}
	if err := inTx(ctx, pool, resetSequences); err != nil {
		log.Fatalf("reset sequences: %v", err)
	}

	token, err := auth.NewService(nil, cfg.JWTSecret, cfg.JWTIssuer).
		Sign(auth.User{ID: 1, Name: "Counter Staff", Email: "counter@temple.local", IsActive: true}, devTokenTTL)
	if err != nil {
		log.Fatalf("sign dev token: %v", err)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
	fmt.Println("  dev token (user 1):", token)
}

func inTx(ctx context.Context, pool *pgxpool.Pool, fn func(context.Context, pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// =============================================================================
// USERS
// =============================================================================

func seedUsers(ctx context.Context, tx pgx.Tx) error {
	users := []struct {
		id     int64
		name   string
		email  string
		active bool
	}{
		{1, "Counter Staff", "counter@temple.local", true},
		{2, "Temple Accountant", "accounts@temple.local", true},
		{3, "Former Volunteer", "volunteer@temple.local", false},
	}
	for _, u := range users {
		if _, err := tx.Exec(ctx, `
			INSERT INTO users (id, name, email, is_active)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email, is_active = EXCLUDED.is_active`,
			u.id, u.name, u.email, u.active); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func seedAccounts(ctx context.Context, tx pgx.Tx) error {
	groups := []struct {
		id   int64
		name string
		code string
	}{
		{1, "Current Assets", "1000"},
		{2, "Current Liabilities", "2000"},
		{3, accounting.IncomesGroupName, accounting.IncomesGroupCode},
		{4, "Expenses", "9000"},
	}
	for _, g := range groups {
		if _, err := tx.Exec(ctx, `
			INSERT INTO account_groups (id, parent_id, name, code, added_by)
			VALUES ($1, 0, $2, $3, 1)
			ON CONFLICT (id) DO NOTHING`, g.id, g.name, g.code); err != nil {
			return err
		}
	}

	ledgers := []struct {
		id      int64
		groupID int64
		name    string
		left    string
		right   string
	}{
		{1, 1, "Cash In Hand", "1000", "0001"},
		{2, 1, "Maybank Current Account", "1000", "0002"},
		{3, 2, "Devotee Deposits", "2000", "0001"},
		{4, 3, "Prayer Item Sales", "8000", "0001"},
		{5, 3, accounting.SalesIncomeLedgerName, "8000", "0002"},
		{6, 4, "Discount Allowed", "9000", "0001"},
	}
	for _, l := range ledgers {
		if _, err := tx.Exec(ctx, `
			INSERT INTO ledgers (id, group_id, name, left_code, right_code)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING`, l.id, l.groupID, l.name, l.left, l.right); err != nil {
			return err
		}
	}

	modes := []struct {
		id       int64
		name     string
		ledgerID *int64
	}{
		{1, "Cash", ptr(1)},
		{2, "DuitNow QR", ptr(2)},
		{3, "Cheque", nil},
	}
	for _, m := range modes {
		if _, err := tx.Exec(ctx, `
			INSERT INTO payment_modes (id, name, ledger_id)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, ledger_id = EXCLUDED.ledger_id`, m.id, m.name, m.ledgerID); err != nil {
			return err
		}
	}

	settings := map[string]string{
		accounting.SettingDepositLedger:  "3",
		accounting.SettingDiscountLedger: "6",
	}
	for key, value := range settings {
		if _, err := tx.Exec(ctx, `
			INSERT INTO booking_settings (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// CATALOGUE
// =============================================================================

func seedCatalogue(ctx context.Context, tx pgx.Tx) error {
	items := []struct {
		id       int64
		name     string
		price    string
		ledgerID *int64
	}{
		{1, "Oil Lamp Offering", "10.00", ptr(4)},
		{2, "Joss Stick Bundle", "5.00", ptr(4)},
		{3, "Vehicle Blessing", "50.00", nil},
	}
	for _, it := range items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO sale_items (id, name, price, ledger_id)
			VALUES ($1, $2, $3::numeric, $4)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price, ledger_id = EXCLUDED.ledger_id`,
			it.id, it.name, it.price, it.ledgerID); err != nil {
			return err
		}
	}

	boms := []struct {
		saleItemID int64
		productID  int64
		qty        string
	}{
		{1, 100, "1"},
		{1, 101, "0.25"},
		{2, 102, "12"},
	}
	if _, err := tx.Exec(ctx, `DELETE FROM sale_item_boms WHERE sale_item_id IN (1, 2)`); err != nil {
		return err
	}
	for _, b := range boms {
		if _, err := tx.Exec(ctx, `
			INSERT INTO sale_item_boms (sale_item_id, product_id, qty)
			VALUES ($1, $2, $3::numeric)`, b.saleItemID, b.productID, b.qty); err != nil {
			return err
		}
	}

	stock := []struct {
		productID int64
		qty       string
		avgCost   string
	}{
		{100, "500", "2.40"},
		{101, "40", "18.00"},
		{102, "2400", "0.15"},
	}
	for _, s := range stock {
		if _, err := tx.Exec(ctx, `
			INSERT INTO stock_balances (product_id, qty, avg_cost, updated_at)
			VALUES ($1, $2::numeric, $3::numeric, NOW())
			ON CONFLICT (product_id) DO NOTHING`, s.productID, s.qty, s.avgCost); err != nil {
			return err
		}
	}
	return nil
}

func resetSequences(ctx context.Context, tx pgx.Tx) error {
	for _, table := range []string{"users", "account_groups", "ledgers", "payment_modes", "sale_items"} {
		if _, err := tx.Exec(ctx, fmt.Sprintf(
			`SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE((SELECT MAX(id) FROM %s), 1))`, table, table)); err != nil {
			return err
		}
	}
	return nil
}

func ptr(v int64) *int64 { return &v }
