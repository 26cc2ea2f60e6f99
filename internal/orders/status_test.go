package orders

import (
	"strings"
	"testing"
	"time"

	"github.com/ariefcatur/go-catering-orders/internal/apperr"
	"github.com/ariefcatur/go-catering-orders/internal/catalog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPendingPayment, StatusPaid, true},
		{StatusPendingPayment, StatusCancelled, true},
		{StatusPaid, StatusAccepted, true},
		{StatusPaid, StatusRejected, true},
		{StatusPaid, StatusPaid, true},
		{StatusAccepted, StatusAccepted, true},
		{StatusPaid, StatusPendingPayment, false},
		{StatusPaid, StatusCancelled, false},
		{StatusAccepted, StatusRejected, false},
		{StatusRejected, StatusPaid, false},
		{StatusCancelled, StatusPaid, true},
		{StatusCancelled, StatusAccepted, false},
		{Status("shipped"), Status("shipped"), false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestPayable(t *testing.T) {
	assert.True(t, Payable(StatusPendingPayment))
	assert.True(t, Payable(StatusCancelled))
	assert.False(t, Payable(StatusPaid))
	assert.False(t, Payable(StatusAccepted))
	assert.False(t, Payable(StatusRejected))
}

func TestAdminGuard(t *testing.T) {
	assert.NoError(t, AdminGuard(StatusPaid, StatusAccepted))
	assert.NoError(t, AdminGuard(StatusPaid, StatusRejected))
	assert.NoError(t, AdminGuard(StatusAccepted, StatusAccepted))
	assert.NoError(t, AdminGuard(StatusPendingPayment, StatusCancelled))

	err := AdminGuard(StatusPendingPayment, StatusPaid)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Error(t, AdminGuard(StatusAccepted, StatusRejected))
	assert.Error(t, AdminGuard(StatusPaid, StatusCancelled))
	assert.Error(t, AdminGuard(StatusCancelled, StatusPaid))
}

func TestParseStatus(t *testing.T) {
	st, ok := ParseStatus("paid")
	assert.True(t, ok)
	assert.Equal(t, StatusPaid, st)

	_, ok = ParseStatus("PAID")
	assert.False(t, ok)
}

func TestNewOrderNumber(t *testing.T) {
	now := time.Date(2026, 3, 7, 9, 5, 2, 0, time.UTC)

	assert.Equal(t, "ORD-20260307-090502-007", NewOrderNumber(now, 7))
	assert.Equal(t, "ORD-20260307-090502-999", NewOrderNumber(now, 999))
	assert.Equal(t, "ORD-20260307-090502-000", NewOrderNumber(now, 1000))

	gen := OrderNumberGenerator(func() time.Time { return now })
	for i := 0; i < 50; i++ {
		assert.Regexp(t, OrderNumberPattern, gen())
	}
}

func TestCustomerValidate(t *testing.T) {
	ok := Customer{FirstName: "Ada", LastName: "Lovelace", Phone: "0700", Email: "ada@example.com", Address: "1 Street"}
	assert.NoError(t, ok.Validate())

	blank := ok
	blank.Phone = "   "
	blank.Address = ""
	err := blank.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), "phone")
	assert.Contains(t, err.Error(), "address")

	long := ok
	long.FirstName = strings.Repeat("a", MaxNameLen+1)
	err = long.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), "firstName")

	long = ok
	long.Email = strings.Repeat("e", MaxEmailLen-12) + "@example.com"
	assert.NoError(t, long.Validate())
	long.Email = "x" + long.Email
	assert.ErrorIs(t, long.Validate(), apperr.ErrValidation)

	// limits count characters, not bytes
	long = ok
	long.LastName = strings.Repeat("ş", MaxNameLen)
	assert.NoError(t, long.Validate())
}

func TestPatchApplyMergesOnlySuppliedFields(t *testing.T) {
	note := "call before delivery"
	email := "  new@example.com "
	accepted := StatusAccepted
	o := Order{
		Status:   StatusPaid,
		Customer: Customer{FirstName: "Ada", LastName: "Lovelace", Phone: "0700", Email: "old@example.com", Address: "1 Street"},
	}

	Patch{Status: &accepted, AdminNote: &note, Email: &email}.Apply(&o)

	assert.Equal(t, StatusAccepted, o.Status)
	require.NotNil(t, o.AdminNote)
	assert.Equal(t, note, *o.AdminNote)
	assert.Equal(t, "new@example.com", o.Customer.Email)
	assert.Equal(t, "Ada", o.Customer.FirstName)
	assert.Equal(t, "1 Street", o.Customer.Address)
}

func TestPatchValidate(t *testing.T) {
	bogus := Status("shipped")
	empty := " "
	assert.Error(t, Patch{Status: &bogus}.Validate())
	assert.Error(t, Patch{FirstName: &empty}.Validate())
	assert.NoError(t, Patch{AdminNote: &empty}.Validate())

	phone := strings.Repeat("7", MaxPhoneLen+1)
	assert.ErrorIs(t, Patch{Phone: &phone}.Validate(), apperr.ErrValidation)
	padded := "  " + strings.Repeat("7", MaxPhoneLen) + "  "
	assert.NoError(t, Patch{Phone: &padded}.Validate())
}

func TestPriceCartRejectsEmptyResolution(t *testing.T) {
	nw := NewOrder{
		Customer: Customer{FirstName: "A", LastName: "B", Phone: "1", Email: "e", Address: "x"},
		Cart:     []catalog.CartEntry{{ItemID: 42, Qty: 1}},
	}
	_, _, err := PriceCart(nw, map[int64]catalog.Item{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	items := map[int64]catalog.Item{42: {ID: 42, Title: "Wraps", UnitPrice: decimal.RequireFromString("6.99"), Active: true}}
	lines, total, err := PriceCart(nw, items)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
	assert.Equal(t, "6.99", total.StringFixed(2))
}

func TestPriceCartBoundsQuantityAndTotal(t *testing.T) {
	cust := Customer{FirstName: "A", LastName: "B", Phone: "1", Email: "e", Address: "x"}
	items := map[int64]catalog.Item{
		7: {ID: 7, Title: "Wedding Platter", UnitPrice: decimal.RequireFromString("850.00"), Active: true},
	}

	_, _, err := PriceCart(NewOrder{Customer: cust, Cart: []catalog.CartEntry{{ItemID: 7, Qty: 2000000000}}}, items)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), "quantity")

	// 999999 * 850.00 overflows NUMERIC(10,2)
	_, _, err = PriceCart(NewOrder{Customer: cust, Cart: []catalog.CartEntry{{ItemID: 7, Qty: catalog.MaxQuantity}}}, items)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), "total")

	// unknown items priced at zero are still bounded by quantity
	_, _, err = PriceCart(NewOrder{Customer: cust, Cart: []catalog.CartEntry{{ItemID: 99, Qty: catalog.MaxQuantity + 1}}, Policy: catalog.ZeroUnknown}, items)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	lines, total, err := PriceCart(NewOrder{Customer: cust, Cart: []catalog.CartEntry{{ItemID: 7, Qty: 117647}}}, items)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
	assert.Equal(t, "99999950.00", total.StringFixed(2))
}
