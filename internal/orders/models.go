package orders

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ariefcatur/go-catering-orders/internal/apperr"
	"github.com/ariefcatur/go-catering-orders/internal/catalog"
	"github.com/shopspring/decimal"
)

const (
	PaymentMethodStripe   = "stripe"
	PaymentMethodTestMode = "test_mode"
)

// Column limits of the orders table.
const (
	MaxNameLen  = 80
	MaxPhoneLen = 40
	MaxEmailLen = 160
)

// MaxTotal is the largest amount total_amount NUMERIC(10,2) can hold.
var MaxTotal = decimal.RequireFromString("99999999.99")

var fieldLimits = map[string]int{
	"firstName": MaxNameLen,
	"lastName":  MaxNameLen,
	"phone":     MaxPhoneLen,
	"email":     MaxEmailLen,
}

func checkLength(name, v string) error {
	if max, ok := fieldLimits[name]; ok && utf8.RuneCountInString(v) > max {
		return apperr.Validation(fmt.Sprintf("%s must be at most %d characters", name, max))
	}
	return nil
}

// LineItem is the priced snapshot stored with an order.
type LineItem = catalog.Line

type Customer struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Address   string `json:"address"`
}

// Normalized trims every field.
func (c Customer) Normalized() Customer {
	return Customer{
		FirstName: strings.TrimSpace(c.FirstName),
		LastName:  strings.TrimSpace(c.LastName),
		Phone:     strings.TrimSpace(c.Phone),
		Email:     strings.TrimSpace(c.Email),
		Address:   strings.TrimSpace(c.Address),
	}
}

// Validate requires every field to be non-empty after trimming and within
// its column limit.
func (c Customer) Validate() error {
	n := c.Normalized()
	fields := []struct{ name, v string }{
		{"firstName", n.FirstName},
		{"lastName", n.LastName},
		{"phone", n.Phone},
		{"email", n.Email},
		{"address", n.Address},
	}
	var missing []string
	for _, f := range fields {
		if f.v == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return apperr.Validation("missing required fields: " + strings.Join(missing, ", "))
	}
	for _, f := range fields {
		if err := checkLength(f.name, f.v); err != nil {
			return err
		}
	}
	return nil
}

type Order struct {
	ID                 string          `json:"id"`
	OrderNumber        *string         `json:"orderNumber,omitempty"`
	Status             Status          `json:"status"`
	Customer           Customer        `json:"customer"`
	Items              []LineItem      `json:"items"`
	TotalAmount        decimal.Decimal `json:"totalAmount"`
	Currency           string          `json:"currency"`
	ExternalSessionRef *string         `json:"externalSessionRef,omitempty"`
	ExternalPaymentRef *string         `json:"externalPaymentRef,omitempty"`
	PaymentMethod      string          `json:"paymentMethod,omitempty"`
	AdminNote          *string         `json:"adminNote,omitempty"`
	TestMode           bool            `json:"testMode"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// NewOrder is what a creation path hands the ledger. Lines are priced inside
// the ledger's transaction, never taken from the caller.
type NewOrder struct {
	Customer      Customer
	Cart          []catalog.CartEntry
	Policy        catalog.UnknownPolicy
	Status        Status
	PaymentMethod string
	TestMode      bool
	Currency      string
	// NumberFn, when set, generates order numbers; it is called again after a collision.
	NumberFn func() string
}

// Confirmation is the processor's verdict on a paid session.
type Confirmation struct {
	OrderID    string // from session metadata, may be empty
	SessionRef string
	PaymentRef string // may be empty
}

// Patch is a merge patch: nil fields are left alone.
type Patch struct {
	Status    *Status `json:"status,omitempty"`
	AdminNote *string `json:"adminNote,omitempty"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Email     *string `json:"email,omitempty"`
	Address   *string `json:"address,omitempty"`
}

// Validate rejects unknown statuses, blank contact fields and values longer
// than their column.
func (p Patch) Validate() error {
	if p.Status != nil && !p.Status.Valid() {
		return apperr.Validation("unknown status " + string(*p.Status))
	}
	for _, f := range []struct {
		name string
		v    *string
	}{
		{"firstName", p.FirstName},
		{"lastName", p.LastName},
		{"phone", p.Phone},
		{"email", p.Email},
		{"address", p.Address},
	} {
		if f.v == nil {
			continue
		}
		v := strings.TrimSpace(*f.v)
		if v == "" {
			return apperr.Validation(f.name + " cannot be empty")
		}
		if err := checkLength(f.name, v); err != nil {
			return err
		}
	}
	return nil
}

// Apply merges p into o.
func (p Patch) Apply(o *Order) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.AdminNote != nil {
		note := *p.AdminNote
		o.AdminNote = &note
	}
	set(&o.Customer.FirstName, p.FirstName)
	set(&o.Customer.LastName, p.LastName)
	set(&o.Customer.Phone, p.Phone)
	set(&o.Customer.Email, p.Email)
	set(&o.Customer.Address, p.Address)
}

// Guard vets a status change inside the ledger's transaction.
type Guard func(from, to Status) error

// PriceCart is the one place orders are priced. It validates the customer,
// bounds quantities and the total, and fails when nothing in the cart
// resolves to a sellable line.
func PriceCart(nw NewOrder, items map[int64]catalog.Item) ([]LineItem, decimal.Decimal, error) {
	if err := nw.Customer.Validate(); err != nil {
		return nil, decimal.Zero, err
	}
	cart := catalog.Normalize(nw.Cart)
	for _, e := range cart {
		if e.Quantity() > catalog.MaxQuantity {
			return nil, decimal.Zero, apperr.Validation(
				fmt.Sprintf("quantity for item %d must be at most %d", e.ItemID, catalog.MaxQuantity))
		}
	}
	lines := catalog.Price(cart, items, nw.Policy)
	if len(lines) == 0 {
		return nil, decimal.Zero, apperr.Validation("selected menu items not found")
	}
	total := catalog.Total(lines)
	if total.GreaterThan(MaxTotal) {
		return nil, decimal.Zero, apperr.Validation("order total exceeds " + MaxTotal.StringFixed(2))
	}
	return lines, total, nil
}
