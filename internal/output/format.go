package output

import "github.com/crimson-sun/politeguard/internal/model"

// FormatRecord returns a copy of the record prepared for writing. With
// redact set, the analyzed text is dropped (omitted from JSON via omitempty).
func FormatRecord(r model.Record, redact bool) model.Record {
	if redact {
		r.Text = ""
	}
	return r
}
