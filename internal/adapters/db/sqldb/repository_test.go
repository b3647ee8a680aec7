package sqldb

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *ShopRepository {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "dozer_test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if _, err := RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return NewShopRepository(db)
}

func TestMigrationsReachLatestVersion(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "version.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	version, err := RunMigrations(context.Background(), db)
	if err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	if version != 2 {
		t.Fatalf("expected schema version 2, got %d", version)
	}
	again, err := RunMigrations(context.Background(), db)
	if err != nil || again != version {
		t.Fatalf("second run must be a no-op: version=%d err=%v", again, err)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t)

	first, err := repo.Seed(ctx)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !first.Created || first.OrderID == 0 || first.InvoiceID == 0 {
		t.Fatalf("unexpected first seed result: %+v", first)
	}

	second, err := repo.Seed(ctx)
	if err != nil {
		t.Fatalf("seed again: %v", err)
	}
	if second.Created {
		t.Fatalf("second seed must not create rows")
	}
	if second.OrderID != first.OrderID || second.InvoiceID != first.InvoiceID {
		t.Fatalf("second seed must report existing rows: %+v vs %+v", second, first)
	}

	orders, err := repo.ListOrders(ctx, 10)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 1 || orders[0].Items != 3 || orders[0].Customer != "Ada Lovelace" {
		t.Fatalf("unexpected orders: %+v", orders)
	}
}

func TestItemsArePositionedInInsertOrder(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t)

	c, err := repo.CreateCustomer(ctx, "Grace", "")
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	o, err := repo.CreateOrder(ctx, c.ID, "SO-1")
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	a, err := repo.AddItem(ctx, o.ID, "A", 0)
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	b, err := repo.AddItem(ctx, o.ID, "B", 2)
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if a.Position != 0 || b.Position != 1 {
		t.Fatalf("unexpected positions: %d, %d", a.Position, b.Position)
	}
	if a.Qty != 1 {
		t.Fatalf("quantity must default to 1, got %d", a.Qty)
	}
}

func TestSetAttributeOverwrites(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t)

	c, _ := repo.CreateCustomer(ctx, "Grace", "")
	o, err := repo.CreateOrder(ctx, c.ID, "SO-2")
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if err := repo.SetAttribute(ctx, o.ID, "channel", "web"); err != nil {
		t.Fatalf("set attribute: %v", err)
	}
	if err := repo.SetAttribute(ctx, o.ID, "channel", "phone"); err != nil {
		t.Fatalf("overwrite attribute: %v", err)
	}

	var rows []OrderAttribute
	if err := repo.db.Where("order_id = ?", o.ID).Find(&rows).Error; err != nil {
		t.Fatalf("read attributes: %v", err)
	}
	if len(rows) != 1 || rows[0].Value != "phone" {
		t.Fatalf("expected a single overwritten attribute, got %+v", rows)
	}
}

func TestCreateCustomerRequiresName(t *testing.T) {
	repo := openTestDB(t)
	if _, err := repo.CreateCustomer(context.Background(), "  ", ""); err == nil {
		t.Fatalf("expected error for blank name")
	}
}

func TestSeedReportsExistingCustomerWithoutOrders(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t)
	c, err := repo.CreateCustomer(ctx, "Grace", "")
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	res, err := repo.Seed(ctx)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if res.Created || res.CustomerID != c.ID || res.OrderID != 0 || res.InvoiceID != 0 {
		t.Fatalf("unexpected seed result: %+v", res)
	}
}

func TestSeedReturnsLookupErrors(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t)
	if _, err := repo.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := repo.db.Exec("ALTER TABLE invoices RENAME TO invoices_old").Error; err != nil {
		t.Fatalf("rename invoices: %v", err)
	}
	if _, err := repo.Seed(ctx); err == nil {
		t.Fatalf("expected an error when invoices cannot be read")
	}
}
