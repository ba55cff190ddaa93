package fields

import "github.com/joseph-ayodele/invoice-extractor/constants"

// FillDefaults inserts the sentinel for every canonical field that is absent,
// in canonical order. Present keys, including explicit empty values, are left
// untouched. Calling it twice is the same as calling it once.
func FillDefaults(f *Fields) {
	for _, name := range constants.CanonicalFields() {
		if !f.Has(name) {
			f.Set(name, constants.Sentinel)
		}
	}
}
