// Package types defines the core data structures for the Recall memory engine:
// entities, learned aliases, memories, consolidation summaries, and the
// attribute-category taxonomy used for conflict detection.
package types

// MemoryKind classifies what a memory represents.
type MemoryKind string

// Memory kind constants.
const (
	// KindEpisodic is a memory of a specific event or interaction.
	KindEpisodic MemoryKind = "episodic"

	// KindSemantic is a stable fact, usually stated explicitly by the user.
	KindSemantic MemoryKind = "semantic"

	// KindProcedural is a memory about how something is done.
	KindProcedural MemoryKind = "procedural"

	// KindPattern is an inferred regularity across multiple observations.
	KindPattern MemoryKind = "pattern"
)

// ValidMemoryKinds lists all valid memory kinds for validation.
var ValidMemoryKinds = []MemoryKind{
	KindEpisodic,
	KindSemantic,
	KindProcedural,
	KindPattern,
}

// IsValidMemoryKind reports whether kind is a known memory kind.
func IsValidMemoryKind(kind MemoryKind) bool {
	for _, k := range ValidMemoryKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// EntityType classifies a business entity in the directory.
type EntityType string

// Entity type constants.
const (
	EntityTypeCustomer     EntityType = "customer"
	EntityTypeVendor       EntityType = "vendor"
	EntityTypePerson       EntityType = "person"
	EntityTypeProduct      EntityType = "product"
	EntityTypeProject      EntityType = "project"
	EntityTypeOrganization EntityType = "organization"
)

// ValidEntityTypes lists all valid entity types for validation.
var ValidEntityTypes = []EntityType{
	EntityTypeCustomer,
	EntityTypeVendor,
	EntityTypePerson,
	EntityTypeProduct,
	EntityTypeProject,
	EntityTypeOrganization,
}

// IsValidEntityType reports whether t is a known entity type.
func IsValidEntityType(t EntityType) bool {
	for _, v := range ValidEntityTypes {
		if v == t {
			return true
		}
	}
	return false
}

// AttributeCategory is the closed set of attribute categories used by the
// conflict detector. Two active memories can only conflict when they map to
// the same category; CategoryUncategorized never conflicts.
type AttributeCategory string

// Attribute category constants.
const (
	CategoryUncategorized      AttributeCategory = "uncategorized"
	CategoryDeliveryDay        AttributeCategory = "delivery_day"
	CategoryContactChannel     AttributeCategory = "contact_channel"
	CategoryPaymentTerms       AttributeCategory = "payment_terms"
	CategoryPricingTier        AttributeCategory = "pricing_tier"
	CategoryMeetingCadence     AttributeCategory = "meeting_cadence"
	CategoryPrimaryContact     AttributeCategory = "primary_contact"
	CategoryShippingAddress    AttributeCategory = "shipping_address"
	CategoryInvoiceFormat      AttributeCategory = "invoice_format"
	CategoryCommunicationStyle AttributeCategory = "communication_style"
)

// ValidAttributeCategories lists every category the classifier can emit.
var ValidAttributeCategories = []AttributeCategory{
	CategoryUncategorized,
	CategoryDeliveryDay,
	CategoryContactChannel,
	CategoryPaymentTerms,
	CategoryPricingTier,
	CategoryMeetingCadence,
	CategoryPrimaryContact,
	CategoryShippingAddress,
	CategoryInvoiceFormat,
	CategoryCommunicationStyle,
}
