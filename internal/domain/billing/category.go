package billing

// Category identifies the clinic department a billable item belongs to.
// The enumeration is fixed; departments submit items only for their own
// category and counters are authorized per category.
type Category string

const (
	CategoryConsultation Category = "consultation"
	CategoryMedication   Category = "medication"
	CategoryOptical      Category = "optical"
	CategoryLaboratory   Category = "laboratory"
	CategorySurgery      Category = "surgery"
	CategoryImaging      Category = "imaging"
	CategoryExamination  Category = "examination"
)

// AllCategories lists every valid category in a stable order
func AllCategories() []Category {
	return []Category{
		CategoryConsultation,
		CategoryMedication,
		CategoryOptical,
		CategoryLaboratory,
		CategorySurgery,
		CategoryImaging,
		CategoryExamination,
	}
}

// IsValid checks if the category is part of the fixed enumeration
func (c Category) IsValid() bool {
	switch c {
	case CategoryConsultation, CategoryMedication, CategoryOptical,
		CategoryLaboratory, CategorySurgery, CategoryImaging, CategoryExamination:
		return true
	}
	return false
}

// String returns the string representation of the category
func (c Category) String() string {
	return string(c)
}

// CollectionPoint identifies a physical cash desk in the clinic
type CollectionPoint string

const (
	PointReception   CollectionPoint = "reception"
	PointPharmacy    CollectionPoint = "pharmacy"
	PointOpticalShop CollectionPoint = "optical-shop"
	PointLaboratory  CollectionPoint = "laboratory"
	PointSurgery     CollectionPoint = "surgery"
	PointImaging     CollectionPoint = "imaging"

	// PointMainCashier is the clinic-wide desk allowed to collect for any category
	PointMainCashier CollectionPoint = "main-cashier"
)

// IsValid checks if the collection point is known
func (p CollectionPoint) IsValid() bool {
	switch p {
	case PointReception, PointPharmacy, PointOpticalShop,
		PointLaboratory, PointSurgery, PointImaging, PointMainCashier:
		return true
	}
	return false
}

// ExpectedCollectionPoint returns the desk where payments for the category
// are normally taken. The main cashier bypasses this check.
func (c Category) ExpectedCollectionPoint() CollectionPoint {
	switch c {
	case CategoryMedication:
		return PointPharmacy
	case CategoryOptical:
		return PointOpticalShop
	case CategoryLaboratory:
		return PointLaboratory
	case CategorySurgery:
		return PointSurgery
	case CategoryImaging:
		return PointImaging
	default:
		// consultation and examination settle at the front desk
		return PointReception
	}
}
