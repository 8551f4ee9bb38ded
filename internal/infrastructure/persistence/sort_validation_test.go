package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string returns DESC", "", "DESC"},
		{"ASC uppercase returns ASC", "ASC", "ASC"},
		{"asc lowercase returns ASC", "asc", "ASC"},
		{"DESC uppercase returns DESC", "DESC", "DESC"},
		{"invalid value returns DESC", "INVALID", "DESC"},
		{"sql injection attempt returns DESC", "ASC; DROP TABLE invoices;--", "DESC"},
		{"whitespace only returns DESC", "   ", "DESC"},
		{"whitespace around ASC returns ASC", "  asc  ", "ASC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateSortOrder(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestValidateSortField(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		defaultField string
		expected     string
	}{
		{"empty string returns default", "", "created_at", "created_at"},
		{"valid field returns field", "invoice_number", "created_at", "invoice_number"},
		{"valid field status returns field", "status", "created_at", "status"},
		{"invalid field returns default", "patient_name", "created_at", "created_at"},
		{"sql injection attempt returns default", "id; DROP TABLE invoices;--", "created_at", "created_at"},
		{"case sensitive - uppercase invalid", "STATUS", "created_at", "created_at"},
		{"whitespace around valid field returns field", "  total  ", "created_at", "total"},
		{"field with spaces injection returns default", "total invoices", "created_at", "created_at"},
		{"field with quotes injection returns default", "total'--", "created_at", "created_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateSortField(tt.input, InvoiceSortFields, tt.defaultField)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestInvoiceSortFields(t *testing.T) {
	for _, field := range []string{"created_at", "updated_at", "invoice_number", "status", "total", "amount_due", "amount_paid"} {
		assert.True(t, InvoiceSortFields[field], "InvoiceSortFields should contain %q", field)
	}
	assert.False(t, InvoiceSortFields["id; DROP TABLE invoices"])
}
