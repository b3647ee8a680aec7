package sqldb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ShopRepository writes the demo schema. Rows are created through their
// foreign keys only, so gorm never upserts associations.
type ShopRepository struct {
	db *gorm.DB
}

func NewShopRepository(db *gorm.DB) *ShopRepository {
	return &ShopRepository{db: db}
}

func (r *ShopRepository) CreateCustomer(ctx context.Context, name, email string) (Customer, error) {
	if strings.TrimSpace(name) == "" {
		return Customer{}, errors.New("customer name is required")
	}
	m := Customer{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email)}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return Customer{}, err
	}
	return m, nil
}

func (r *ShopRepository) CreateOrder(ctx context.Context, customerID uint, number string) (Order, error) {
	m := Order{CustomerID: customerID, Number: strings.TrimSpace(number)}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return Order{}, err
	}
	return m, nil
}

// AddItem appends an item at the end of the order.
func (r *ShopRepository) AddItem(ctx context.Context, orderID uint, sku string, qty int) (OrderItem, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&OrderItem{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
		return OrderItem{}, err
	}
	m := OrderItem{OrderID: orderID, SKU: sku, Qty: max(qty, 1), Position: int(count)}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return OrderItem{}, err
	}
	return m, nil
}

func (r *ShopRepository) AddTag(ctx context.Context, orderID uint, code string) (Tag, error) {
	m := Tag{OrderID: orderID, Code: code}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return Tag{}, err
	}
	return m, nil
}

// SetAttribute creates or overwrites the named attribute of an order.
func (r *ShopRepository) SetAttribute(ctx context.Context, orderID uint, name, value string) error {
	m := OrderAttribute{OrderID: orderID, Name: name, Value: value}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&m).Error
}

// AddNote attaches a note to any audited entity, identified by its entity
// name (for example "Order") and primary key.
func (r *ShopRepository) AddNote(ctx context.Context, ownerType string, ownerID uint, body string) (Note, error) {
	m := Note{OwnerType: ownerType, OwnerID: ownerID, Body: body}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return Note{}, err
	}
	return m, nil
}

type LineInput struct {
	Label string
	Cents int64
}

func (r *ShopRepository) CreateInvoice(ctx context.Context, customerID uint, number string, lines ...LineInput) (Invoice, error) {
	var inv Invoice
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv = Invoice{CustomerID: customerID, Number: number}
		inv.Currency = "EUR"
		inv.DueDays = 30
		if err := tx.Create(&inv).Error; err != nil {
			return err
		}
		for i, l := range lines {
			line := InvoiceLine{InvoiceID: inv.ID, Label: l.Label, Cents: l.Cents, Position: i}
			if err := tx.Create(&line).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

type OrderSummary struct {
	ID       uint   `json:"id"`
	Number   string `json:"number"`
	Customer string `json:"customer"`
	Items    int    `json:"items"`
}

func (r *ShopRepository) ListOrders(ctx context.Context, limit int) ([]OrderSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows := make([]OrderSummary, 0)
	if err := r.db.WithContext(ctx).Raw(`
SELECT o.id,
       o.number,
       c.name AS customer,
       (SELECT COUNT(*) FROM order_items i WHERE i.order_id = o.id) AS items
FROM orders o
LEFT JOIN customers c ON c.id = o.customer_id
ORDER BY o.id DESC
LIMIT ?
`, limit).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

type SeedResult struct {
	CustomerID uint `json:"customerId"`
	OrderID    uint `json:"orderId"`
	InvoiceID  uint `json:"invoiceId"`
	Created    bool `json:"created"`
}

// Seed inserts a small demo data set unless customers already exist.
func (r *ShopRepository) Seed(ctx context.Context) (SeedResult, error) {
	var existing Customer
	err := r.db.WithContext(ctx).Order("id").Take(&existing).Error
	if err == nil {
		var order Order
		var inv Invoice
		if err := r.db.WithContext(ctx).Where("customer_id = ?", existing.ID).Order("id").Take(&order).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return SeedResult{}, fmt.Errorf("find seeded order: %w", err)
		}
		if err := r.db.WithContext(ctx).Where("customer_id = ?", existing.ID).Order("id").Take(&inv).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return SeedResult{}, fmt.Errorf("find seeded invoice: %w", err)
		}
		return SeedResult{CustomerID: existing.ID, OrderID: order.ID, InvoiceID: inv.ID}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return SeedResult{}, err
	}

	customer, err := r.CreateCustomer(ctx, "Ada Lovelace", "ada@example.org")
	if err != nil {
		return SeedResult{}, fmt.Errorf("seed customer: %w", err)
	}
	order, err := r.CreateOrder(ctx, customer.ID, "SO-1001")
	if err != nil {
		return SeedResult{}, fmt.Errorf("seed order: %w", err)
	}
	for _, sku := range []string{"ENGINE-1", "CARD-PUNCH", "MANUAL"} {
		if _, err := r.AddItem(ctx, order.ID, sku, 1); err != nil {
			return SeedResult{}, fmt.Errorf("seed item %s: %w", sku, err)
		}
	}
	for _, code := range []string{"priority", "export"} {
		if _, err := r.AddTag(ctx, order.ID, code); err != nil {
			return SeedResult{}, fmt.Errorf("seed tag %s: %w", code, err)
		}
	}
	if err := r.SetAttribute(ctx, order.ID, "channel", "web"); err != nil {
		return SeedResult{}, fmt.Errorf("seed attribute: %w", err)
	}
	if _, err := r.AddNote(ctx, "Order", order.ID, "customer asked for gift wrap"); err != nil {
		return SeedResult{}, fmt.Errorf("seed order note: %w", err)
	}

	inv, err := r.CreateInvoice(ctx, customer.ID, "INV-2001",
		LineInput{Label: "Analytical engine", Cents: 125000},
		LineInput{Label: "Shipping", Cents: 4500},
	)
	if err != nil {
		return SeedResult{}, fmt.Errorf("seed invoice: %w", err)
	}
	if _, err := r.AddNote(ctx, "Invoice", inv.ID, "net 30"); err != nil {
		return SeedResult{}, fmt.Errorf("seed invoice note: %w", err)
	}

	return SeedResult{CustomerID: customer.ID, OrderID: order.ID, InvoiceID: inv.ID, Created: true}, nil
}
