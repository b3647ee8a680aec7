package sqldb

import (
	"time"

	"github.com/devgateway/dozer-model/internal/domain"
)

// Audited gives the embedding entity a lazy list of notes. Notes are shared
// by several entities, so rows carry the owning entity name.
type Audited struct {
	domain.MappedSuperclass `gorm:"-" json:"-"`
	Notes                   *domain.Bag[*Note] `gorm:"-" json:"notes" dozer:"mappedBy:OwnerID;ownerType:OwnerType"`
}

// Billing holds what invoices have in common. It contributes fields, not an
// entity of its own.
type Billing struct {
	domain.MappedSuperclass `gorm:"-" json:"-"`
	Audited
	Currency string `gorm:"not null;default:'EUR'" json:"currency"`
	DueDays  int    `gorm:"not null;default:30" json:"dueDays"`
}

type Customer struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Customer) TableName() string { return "customers" }

type Order struct {
	Audited
	ID         uint                                 `gorm:"primaryKey" json:"id"`
	Number     string                               `gorm:"not null;uniqueIndex" json:"number"`
	CustomerID uint                                 `gorm:"not null;index" json:"customerId"`
	Customer   *Customer                            `json:"customer,omitempty"`
	Items      *domain.Bag[*OrderItem]              `gorm:"-" json:"items" dozer:"mappedBy:OrderID;orderBy:Position"`
	Tags       *domain.Set[*Tag]                    `gorm:"-" json:"tags" dozer:"mappedBy:OrderID"`
	Attributes *domain.Map[string, *OrderAttribute] `gorm:"-" json:"attributes" dozer:"mappedBy:OrderID;mapKey:Name"`
	CreatedAt  time.Time                            `json:"createdAt"`
}

func (Order) TableName() string { return "orders" }

type OrderItem struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	OrderID  uint   `gorm:"not null;index" json:"orderId"`
	Order    *Order `json:"-"`
	SKU      string `gorm:"not null" json:"sku"`
	Qty      int    `gorm:"not null;default:1" json:"qty"`
	Position int    `gorm:"not null;default:0" json:"position"`
}

func (OrderItem) TableName() string { return "order_items" }

type OrderAttribute struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	OrderID uint   `gorm:"not null;index:idx_order_attr,unique" json:"-"`
	Name    string `gorm:"not null;index:idx_order_attr,unique" json:"name"`
	Value   string `gorm:"not null" json:"value"`
}

func (OrderAttribute) TableName() string { return "order_attrs" }

type Tag struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	OrderID uint   `gorm:"not null;index" json:"-"`
	Code    string `gorm:"not null" json:"code"`
}

func (Tag) TableName() string { return "tags" }

type Note struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OwnerID   uint      `gorm:"not null;index:idx_note_owner" json:"-"`
	OwnerType string    `gorm:"not null;index:idx_note_owner" json:"-"`
	Body      string    `gorm:"not null" json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Note) TableName() string { return "notes" }

type Invoice struct {
	Billing
	ID         uint                       `gorm:"primaryKey" json:"id"`
	Number     string                     `gorm:"not null;uniqueIndex" json:"number"`
	CustomerID uint                       `gorm:"not null;index" json:"customerId"`
	Customer   *Customer                  `json:"customer,omitempty"`
	Lines      *domain.List[*InvoiceLine] `gorm:"-" json:"lines" dozer:"mappedBy:InvoiceID;orderBy:Position"`
	CreatedAt  time.Time                  `json:"createdAt"`
}

func (Invoice) TableName() string { return "invoices" }

type InvoiceLine struct {
	ID        uint     `gorm:"primaryKey" json:"id"`
	InvoiceID uint     `gorm:"not null;index" json:"-"`
	Invoice   *Invoice `json:"-"`
	Label     string   `gorm:"not null" json:"label"`
	Cents     int64    `gorm:"not null" json:"cents"`
	Position  int      `gorm:"not null;default:0" json:"position"`
}

func (InvoiceLine) TableName() string { return "invoice_lines" }

// Entities lists every mapped model, in registration order.
func Entities() []any {
	return []any{
		&Customer{},
		&Order{},
		&OrderItem{},
		&OrderAttribute{},
		&Tag{},
		&Note{},
		&Invoice{},
		&InvoiceLine{},
	}
}
