package billing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/medflow/backend/internal/domain/shared/valueobject"
)

// PaymentMethod is how the money was taken at the counter
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodMobileMoney  PaymentMethod = "mobile-money"
	PaymentMethodBankTransfer PaymentMethod = "bank-transfer"
	PaymentMethodConvention   PaymentMethod = "convention"
)

// IsValid checks if the payment method is known
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodMobileMoney,
		PaymentMethodBankTransfer, PaymentMethodConvention:
		return true
	}
	return false
}

// Payment is one payment transaction recorded against the invoice. Payments
// are append-only: once recorded they are never mutated or deleted, only
// referenced by later reversing entries (negative amounts).
type Payment struct {
	ID              uuid.UUID         `json:"id"`
	ItemID          *uuid.UUID        `json:"item_id,omitempty"` // nil for lump-sum entries
	Amount          valueobject.Money `json:"amount"`
	Method          PaymentMethod     `json:"method"`
	CollectionPoint CollectionPoint   `json:"collection_point"`
	CollectedBy     uuid.UUID         `json:"collected_by"`
	CollectedAt     time.Time         `json:"collected_at"`

	// How the amount divides between the convention and the patient at the
	// moment the payment was taken. Zero/zero when no coverage applied.
	PayerShare   valueobject.Money `json:"payer_share"`
	PatientShare valueobject.Money `json:"patient_share"`
}

// Payments is the aggregate's append-only payment array, stored as JSONB
type Payments []Payment

// Value implements driver.Valuer for JSONB storage
func (p Payments) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner for JSONB retrieval
func (p *Payments) Scan(value interface{}) error {
	if value == nil {
		*p = Payments{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan Payments: unsupported type")
	}

	if len(bytes) == 0 {
		*p = Payments{}
		return nil
	}
	return json.Unmarshal(bytes, p)
}
