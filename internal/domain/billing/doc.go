// Package billing models the clinic's invoicing and payment ledger.
//
// The central aggregate is Invoice: one per visit, holding billable items
// and an append-only ledger of payments. Items are priced at add time and
// carry a frozen coverage snapshot from their first payment onward.
// Invoice status (draft, issued, partial, paid, void) is always derived
// from item and payment state, never set directly.
//
// Supporting pieces:
//   - Category / CollectionPoint: service categories and the desks that
//     collect for them
//   - CoverageRule / SplitCoverage: payer vs patient cost splitting with
//     caps and deterministic rounding
//   - PermissionGate: per-category authorization for viewing, completing,
//     collecting, and marking items external
//
// Persistence and pricing are ports (InvoiceRepository, CoverageResolver);
// implementations live under internal/infrastructure.
package billing
