package pipeline

// Stage identifies one step of the barcode pipeline.
type Stage int

const (
	StageNormalize Stage = iota + 1
	StageBlur
	StageGradient
	StageThreshold
	StageMorphology
	StageContours
	StageDeskew
	StageROI
	StageDecode
)

var stageNames = map[Stage]string{
	StageNormalize:  "normalize",
	StageBlur:       "blur",
	StageGradient:   "gradient",
	StageThreshold:  "threshold",
	StageMorphology: "morphology",
	StageContours:   "contours",
	StageDeskew:     "deskew",
	StageROI:        "roi",
	StageDecode:     "decode",
}

var stageTitles = map[Stage]string{
	StageNormalize:  "Equalized",
	StageBlur:       "Blurred",
	StageGradient:   "Gradient magnitude",
	StageThreshold:  "Adaptive threshold",
	StageMorphology: "Closed",
	StageContours:   "Selected contour",
	StageDeskew:     "Rotated",
	StageROI:        "Region of interest",
	StageDecode:     "Decoded symbols",
}

// String returns the short stage name used in logs, metrics and file names.
func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return "unknown"
}

// Title returns the human-readable stage caption.
func (s Stage) Title() string { return stageTitles[s] }

// Stages lists every stage in execution order.
func Stages() []Stage {
	return []Stage{
		StageNormalize, StageBlur, StageGradient, StageThreshold, StageMorphology,
		StageContours, StageDeskew, StageROI, StageDecode,
	}
}
