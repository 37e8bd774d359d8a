package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned for a source format the extractor
	// does not understand. The caller should resubmit in a supported one.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrEmptyFile is returned when the source has no parseable rows.
	ErrEmptyFile = errors.New("no line items found in file")
)

// VendorResolutionError reports a line item that could not be resolved to a
// product of its selected vendor. It aborts the whole synthesis request.
type VendorResolutionError struct {
	ItemName string
	VendorID int64
}

func (e *VendorResolutionError) Error() string {
	return fmt.Sprintf("no matching product for %q at supplier %d", e.ItemName, e.VendorID)
}

// InvalidVendorReferenceError reports a vendor selection pointing at a
// supplier that does not exist.
type InvalidVendorReferenceError struct {
	VendorID int64
}

func (e *InvalidVendorReferenceError) Error() string {
	return fmt.Sprintf("selected vendor %d does not exist", e.VendorID)
}
