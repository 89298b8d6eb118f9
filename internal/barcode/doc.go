// Package barcode defines the symbol decoder consumed by the pipeline once a
// region of interest has been rectified, plus the default gozxing-backed
// implementation.
//
// Decoders receive the cropped grayscale ROI and report symbols in the ROI's
// own coordinate frame. Finding nothing is a valid outcome and yields an empty
// slice with a nil error.
package barcode
