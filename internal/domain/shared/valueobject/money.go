package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/medflow/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	CurrencyXOF Currency = "XOF" // West African CFA franc (default)
	CurrencyEUR Currency = "EUR" // Euro
	CurrencyUSD Currency = "USD" // US Dollar
	CurrencyMAD Currency = "MAD" // Moroccan Dirham
)

// DefaultCurrency is the default currency for the system
const DefaultCurrency = CurrencyXOF

// Money is a value object representing a monetary amount as integer minor
// units (e.g. cents, or whole francs for zero-decimal currencies).
// It is immutable - all operations return new Money instances.
// Money never uses floating point internally; fractional computations such
// as percentages go through decimal arithmetic and round half away from zero.
type Money struct {
	amount   int64
	currency Currency
}

// NewMoney creates a new Money holding the given number of minor units
func NewMoney(minorUnits int64, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, shared.NewDomainError("INVALID_CURRENCY", "Currency cannot be empty")
	}
	return Money{amount: minorUnits, currency: currency}, nil
}

// MustNewMoney creates Money and panics on an empty currency.
// Intended for literals in tests and static configuration.
func MustNewMoney(minorUnits int64, currency Currency) Money {
	m, err := NewMoney(minorUnits, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero-value Money in the specified currency
func Zero(currency Currency) Money {
	return Money{amount: 0, currency: currency}
}

// Amount returns the amount in minor units
func (m Money) Amount() int64 {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.amount == 0
}

// IsPositive returns true if the amount is positive
func (m Money) IsPositive() bool {
	return m.amount > 0
}

// IsNegative returns true if the amount is negative
func (m Money) IsNegative() bool {
	return m.amount < 0
}

// Add returns a new Money with the sum of both amounts
// Returns error if currencies don't match
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot add money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{amount: m.amount + other.amount, currency: m.currency}, nil
}

// MustAdd adds two Money values, panics if currencies don't match
func (m Money) MustAdd(other Money) Money {
	result, err := m.Add(other)
	if err != nil {
		panic(err)
	}
	return result
}

// Subtract returns a new Money with the difference. A result below zero is
// an Underflow error, never a silent clamp; callers that want flooring at
// zero must ask for it explicitly via ClampNonNegative.
func (m Money) Subtract(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot subtract money with different currencies: %s and %s", m.currency, other.currency)
	}
	if other.amount > m.amount {
		return Money{}, shared.ErrUnderflow
	}
	return Money{amount: m.amount - other.amount, currency: m.currency}, nil
}

// MustSubtract subtracts two Money values, panics on currency mismatch or underflow
func (m Money) MustSubtract(other Money) Money {
	result, err := m.Subtract(other)
	if err != nil {
		panic(err)
	}
	return result
}

// SubtractSigned returns the difference without the underflow guard.
// The result may be negative; used for balancing entries such as reversals.
func (m Money) SubtractSigned(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot subtract money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{amount: m.amount - other.amount, currency: m.currency}, nil
}

// MultiplyQuantity returns a new Money multiplied by an item quantity
func (m Money) MultiplyQuantity(quantity int64) Money {
	return Money{amount: m.amount * quantity, currency: m.currency}
}

// Percent returns the given percentage of this Money, rounded half away
// from zero to the minor unit.
func (m Money) Percent(percent decimal.Decimal) Money {
	result := decimal.NewFromInt(m.amount).
		Mul(percent).
		Div(decimal.NewFromInt(100)).
		Round(0)
	return Money{amount: result.IntPart(), currency: m.currency}
}

// ApplyRate multiplies the amount by the given rate (e.g. 1.15 for a +15%
// site modifier), rounding half away from zero to the minor unit.
func (m Money) ApplyRate(rate decimal.Decimal) Money {
	result := decimal.NewFromInt(m.amount).Mul(rate).Round(0)
	return Money{amount: result.IntPart(), currency: m.currency}
}

// ClampNonNegative returns the amount floored at zero. This is the explicit
// opt-in counterpart of the Underflow error on Subtract.
func (m Money) ClampNonNegative() Money {
	if m.amount < 0 {
		return Money{amount: 0, currency: m.currency}
	}
	return m
}

// Negate returns a new Money with the sign reversed
func (m Money) Negate() Money {
	return Money{amount: -m.amount, currency: m.currency}
}

// Cmp compares two Money values: -1 if m < other, 0 if equal, 1 if m > other.
// Returns error if currencies don't match.
func (m Money) Cmp(other Money) (int, error) {
	if m.currency != other.currency {
		return 0, fmt.Errorf("cannot compare money with different currencies: %s and %s", m.currency, other.currency)
	}
	switch {
	case m.amount < other.amount:
		return -1, nil
	case m.amount > other.amount:
		return 1, nil
	default:
		return 0, nil
	}
}

// Equals returns true if both Money values are equal (same amount and currency)
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount == other.amount
}

// LessThan returns true if this Money is less than the other
func (m Money) LessThan(other Money) (bool, error) {
	c, err := m.Cmp(other)
	return c < 0, err
}

// GreaterThan returns true if this Money is greater than the other
func (m Money) GreaterThan(other Money) (bool, error) {
	c, err := m.Cmp(other)
	return c > 0, err
}

// GreaterThanOrEqual returns true if this Money is greater than or equal to the other
func (m Money) GreaterThanOrEqual(other Money) (bool, error) {
	c, err := m.Cmp(other)
	return c >= 0, err
}

// String returns a string representation of the Money
func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.amount, m.currency)
}

// MarshalJSON implements json.Marshaler
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64    `json:"amount"`
		Currency Currency `json:"currency"`
	}{
		Amount:   m.amount,
		Currency: m.currency,
	})
}

// UnmarshalJSON implements json.Unmarshaler. An absent currency falls back
// to DefaultCurrency so that embedded persistence documents written before
// multi-currency support still scan cleanly.
func (m *Money) UnmarshalJSON(data []byte) error {
	var v struct {
		Amount   int64    `json:"amount"`
		Currency Currency `json:"currency"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	m.amount = v.Amount
	m.currency = v.Currency
	if m.currency == "" {
		m.currency = DefaultCurrency
	}
	return nil
}

// Value implements driver.Valuer for database storage
// Stores the amount in minor units only
func (m Money) Value() (driver.Value, error) {
	return m.amount, nil
}

// Scan implements sql.Scanner for database retrieval. Only the amount is
// stored in the column; currency defaults to DefaultCurrency unless already set.
func (m *Money) Scan(value any) error {
	if value == nil {
		m.amount = 0
		if m.currency == "" {
			m.currency = DefaultCurrency
		}
		return nil
	}

	switch v := value.(type) {
	case int64:
		m.amount = v
	case []byte:
		var parsed int64
		if _, err := fmt.Sscanf(string(v), "%d", &parsed); err != nil {
			return fmt.Errorf("invalid integer value for Money: %w", err)
		}
		m.amount = parsed
	default:
		return fmt.Errorf("cannot scan %T into Money", value)
	}
	if m.currency == "" {
		m.currency = DefaultCurrency
	}
	return nil
}
