package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medflow/backend/internal/domain/shared"
	"github.com/medflow/backend/internal/domain/shared/valueobject"
)

// CoverageRule describes how a third-party payer (employer/insurance
// convention) shares the cost of one item category for one patient.
// The rule is resolved externally at payment time and treated as an
// immutable input; it is never persisted here.
type CoverageRule struct {
	PayerID                uuid.UUID
	Percentage             decimal.Decimal // payer share, 0-100
	CapAmount              *valueobject.Money
	RequiresPreApproval    bool
	PatientDiscountPercent decimal.Decimal // applied to the patient share only, after the split
}

// HasCoverage reports whether the rule actually shifts any cost to the payer
func (r *CoverageRule) HasCoverage() bool {
	return r != nil && r.Percentage.IsPositive()
}

// CoverageResolver resolves the coverage rule in force for a patient, payer
// and category at the moment of the call. Implementations live outside this
// service; results must not be cached across payments since eligibility can
// change between calls.
type CoverageResolver interface {
	ResolveCoverage(ctx context.Context, patientID uuid.UUID, category Category) (*CoverageRule, error)
}

// CurrencyConverter converts an amount into the target currency. Rate
// sourcing is outside this subsystem, so conversion is injected.
type CurrencyConverter func(amount valueobject.Money, target valueobject.Currency) (valueobject.Money, error)

// IdentityConverter only accepts amounts already in the target currency
func IdentityConverter(amount valueobject.Money, target valueobject.Currency) (valueobject.Money, error) {
	if amount.Currency() != target {
		return valueobject.Money{}, shared.NewDomainError("CURRENCY_MISMATCH",
			fmt.Sprintf("No conversion available from %s to %s", amount.Currency(), target))
	}
	return amount, nil
}

// Split is the outcome of dividing one line total between payer and patient.
// PayerAmount + PatientAmount + PatientDiscount always equals the line total.
type Split struct {
	PayerAmount     valueobject.Money
	PatientAmount   valueobject.Money
	PatientDiscount valueobject.Money
	PayerPercent    decimal.Decimal
}

// SplitCoverage divides a line total between the third-party payer and the
// patient under the given rule.
//
// The payer amount is the rounded percentage of the (possibly capped) line
// total; the patient amount is always derived by subtraction from the total,
// never computed independently, so the two shares reconcile to the line total
// for every percentage. Any additional patient discount is taken out of the
// patient share after the split and reported separately.
func SplitCoverage(lineTotal valueobject.Money, rule *CoverageRule, convert CurrencyConverter) (Split, error) {
	zero := valueobject.Zero(lineTotal.Currency())

	if !rule.HasCoverage() {
		return Split{
			PayerAmount:     zero,
			PatientAmount:   lineTotal,
			PatientDiscount: zero,
			PayerPercent:    decimal.Zero,
		}, nil
	}

	if lineTotal.IsNegative() {
		return Split{}, shared.NewDomainError("INVALID_AMOUNT", "Line total cannot be negative")
	}
	if rule.Percentage.GreaterThan(decimal.NewFromInt(100)) {
		return Split{}, shared.NewDomainError("INVALID_COVERAGE", "Coverage percentage cannot exceed 100")
	}

	if convert == nil {
		convert = IdentityConverter
	}

	coveredBase := lineTotal
	if rule.CapAmount != nil {
		capInInvoiceCurrency, err := convert(*rule.CapAmount, lineTotal.Currency())
		if err != nil {
			return Split{}, err
		}
		exceeds, err := lineTotal.GreaterThan(capInInvoiceCurrency)
		if err != nil {
			return Split{}, err
		}
		if exceeds {
			overage, err := lineTotal.Subtract(capInInvoiceCurrency)
			if err != nil {
				return Split{}, err
			}
			coveredBase, err = lineTotal.Subtract(overage)
			if err != nil {
				return Split{}, err
			}
		}
	}

	payerAmount := coveredBase.Percent(rule.Percentage)

	// The patient share is the remainder of the total, by construction.
	patientAmount, err := lineTotal.Subtract(payerAmount)
	if err != nil {
		return Split{}, shared.NewDomainError("LEDGER_INCONSISTENCY",
			"Payer share exceeds line total; coverage rule produced an invalid split")
	}

	check := payerAmount.MustAdd(patientAmount)
	if !check.Equals(lineTotal) {
		return Split{}, shared.NewDomainError("LEDGER_INCONSISTENCY",
			"Payer plus patient share does not equal the line total")
	}

	patientDiscount := valueobject.Zero(lineTotal.Currency())
	if rule.PatientDiscountPercent.IsPositive() {
		patientDiscount = patientAmount.Percent(rule.PatientDiscountPercent)
		patientAmount, err = patientAmount.Subtract(patientDiscount)
		if err != nil {
			return Split{}, shared.NewDomainError("INVALID_COVERAGE", "Patient discount exceeds the patient share")
		}
	}

	return Split{
		PayerAmount:     payerAmount,
		PatientAmount:   patientAmount,
		PatientDiscount: patientDiscount,
		PayerPercent:    rule.Percentage,
	}, nil
}
