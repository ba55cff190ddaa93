package constants

// Sentinel is stored for a canonical field that was not found in the source text.
const Sentinel = "N/A"

// Canonical invoice fields, in the order defaults are inserted.
const (
	FieldInvoiceNumber   = "Invoice Number"
	FieldSoldBy          = "Sold By"
	FieldPANNo           = "PAN No"
	FieldGSTNo           = "GST Registration No"
	FieldCINNo           = "CIN No"
	FieldOrderNumber     = "Order Number"
	FieldOrderDate       = "Order Date"
	FieldBillingAddress  = "Billing Address"
	FieldShippingAddress = "Shipping Address"
	FieldInvoiceDate     = "Invoice Date"
)

var canonicalFields = []string{
	FieldInvoiceNumber,
	FieldSoldBy,
	FieldPANNo,
	FieldGSTNo,
	FieldCINNo,
	FieldOrderNumber,
	FieldOrderDate,
	FieldBillingAddress,
	FieldShippingAddress,
	FieldInvoiceDate,
}

// CanonicalFields returns a copy of the canonical field list.
func CanonicalFields() []string {
	result := make([]string, len(canonicalFields))
	copy(result, canonicalFields)
	return result
}

// IsCanonical reports whether name is one of the canonical fields (exact match).
func IsCanonical(name string) bool {
	for _, f := range canonicalFields {
		if f == name {
			return true
		}
	}
	return false
}
