package cart

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jafarshop/checkoutapi/internal/domain"
	"github.com/jafarshop/checkoutapi/pkg/errors"
)

const DefaultMaxItems = 100

// MaxAmount caps any unit price, line subtotal or cart total, in CFA
const MaxAmount int64 = 1_000_000_000

var (
	maxAmount    = decimal.NewFromInt(MaxAmount)
	maxProductID = decimal.NewFromInt(math.MaxInt64)
)

// Billing field limits, in runes
const (
	maxNameLength    = 255
	maxEmailLength   = 254
	maxPersonLength  = 150
	maxAddressLength = 255
	maxCityLength    = 100
	maxCountryLength = 100
	maxZipCodeLength = 20
	maxPhoneLength   = 30
)

// Validator turns untyped client carts into snapshots
type Validator struct {
	maxItems int
}

func NewValidator(maxItems int) *Validator {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &Validator{maxItems: maxItems}
}

// ValidateCart normalizes a decoded JSON cart into a snapshot and returns its total.
// Any bad line fails the whole cart.
func (v *Validator) ValidateCart(raw any) (domain.CartSnapshot, int64, error) {
	lines, ok := raw.([]any)
	if !ok {
		return nil, 0, &errors.ErrValidation{Field: "cart", Message: "must be a list"}
	}
	if len(lines) == 0 {
		return nil, 0, &errors.ErrValidation{Field: "cart", Message: "is empty"}
	}
	if len(lines) > v.maxItems {
		return nil, 0, &errors.ErrValidation{
			Field:   "cart",
			Message: fmt.Sprintf("too many items (%d > %d)", len(lines), v.maxItems),
		}
	}

	snapshot := make(domain.CartSnapshot, 0, len(lines))
	sum := decimal.Zero
	for i, rawLine := range lines {
		line, err := coerceLine(rawLine)
		if err != nil {
			return nil, 0, &errors.ErrValidation{Field: fmt.Sprintf("cart[%d]", i), Message: err.Error()}
		}
		snapshot = append(snapshot, line)
		sum = sum.Add(decimal.NewFromInt(line.Subtotal()))
	}

	if sum.GreaterThan(maxAmount) {
		return nil, 0, &errors.ErrValidation{
			Field:   "cart",
			Message: fmt.Sprintf("total exceeds %d", MaxAmount),
		}
	}

	// every line and the sum are bounded, so the int64 total cannot wrap
	total := snapshot.Total()
	if total <= 0 {
		return nil, 0, &errors.ErrValidation{Field: "cart", Message: "total must be greater than zero"}
	}

	return snapshot, total, nil
}

func coerceLine(raw any) (domain.CartLine, error) {
	fields, ok := raw.(map[string]any)
	if !ok {
		return domain.CartLine{}, fmt.Errorf("must be an object")
	}

	var line domain.CartLine

	if rawID, present := fields["id"]; present && rawID != nil {
		id, err := toDecimal(rawID)
		if err != nil || !id.IsInteger() || !id.IsPositive() || id.GreaterThan(maxProductID) {
			return domain.CartLine{}, fmt.Errorf("invalid id %v", rawID)
		}
		productID := id.IntPart()
		line.ProductID = &productID
	}

	line.Name = truncate(toString(fields["name"]), maxNameLength)

	price, err := toDecimal(fields["price"])
	if err != nil {
		return domain.CartLine{}, fmt.Errorf("invalid price %v", fields["price"])
	}
	if !price.IsInteger() || price.IsNegative() {
		return domain.CartLine{}, fmt.Errorf("price must be a non-negative integer")
	}
	if price.GreaterThan(maxAmount) {
		return domain.CartLine{}, fmt.Errorf("price exceeds %d", MaxAmount)
	}
	line.UnitPrice = price.IntPart()

	quantity, err := toDecimal(fields["quantity"])
	if err != nil {
		return domain.CartLine{}, fmt.Errorf("invalid quantity %v", fields["quantity"])
	}
	quantity = quantity.Truncate(0)
	if quantity.LessThan(decimal.NewFromInt(1)) {
		quantity = decimal.NewFromInt(1)
	}
	if price.Mul(quantity).GreaterThan(maxAmount) {
		return domain.CartLine{}, fmt.Errorf("subtotal exceeds %d", MaxAmount)
	}
	line.Quantity = quantity.IntPart()

	return line, nil
}

// toDecimal accepts the shapes encoding/json and form clients produce for numbers
func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), nil
	case json.Number:
		return decimal.NewFromString(n.String())
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case string:
		return decimal.NewFromString(strings.TrimSpace(n))
	default:
		return decimal.Decimal{}, fmt.Errorf("not a number: %T", v)
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case json.Number:
		return s.String()
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// ExtractBilling copies the known billing fields, truncated. It never fails;
// callers that need an email check it themselves.
func ExtractBilling(raw any) domain.BillingSnapshot {
	fields, _ := raw.(map[string]any)
	get := func(key string, limit int) string {
		return truncate(toString(fields[key]), limit)
	}

	return domain.BillingSnapshot{
		Email:     get("email", maxEmailLength),
		FirstName: get("first_name", maxPersonLength),
		LastName:  get("last_name", maxPersonLength),
		Address:   get("address", maxAddressLength),
		City:      get("city", maxCityLength),
		Country:   get("country", maxCountryLength),
		ZipCode:   get("zip_code", maxZipCodeLength),
		Phone:     get("phone", maxPhoneLength),
	}
}

// RequireEmail rejects a billing snapshot without an email
func RequireEmail(b domain.BillingSnapshot) error {
	if b.Email == "" || !strings.Contains(b.Email, "@") {
		return &errors.ErrValidation{Field: "billing.email", Message: "a valid email is required"}
	}
	return nil
}
