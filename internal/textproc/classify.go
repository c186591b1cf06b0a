package textproc

import "unicode"

// DocClass labels extracted text by alphanumeric density. The label is
// advisory: it decides whether the caller warns about a likely scanned
// document, never whether extraction proceeds.
type DocClass string

const (
	DocClassText    DocClass = "text"
	DocClassScanned DocClass = "scanned"
	DocClassHybrid  DocClass = "hybrid"
)

const (
	scannedDensity = 0.05
	hybridDensity  = 0.30
)

// Classify inspects sanitized text and labels the source document.
// Almost no alphanumeric content means a scanned/image document; a low
// density relative to length means a hybrid.
func Classify(s string) DocClass {
	var alnum, total int
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	if total == 0 || alnum == 0 {
		return DocClassScanned
	}
	density := float64(alnum) / float64(total)
	if density < scannedDensity {
		return DocClassScanned
	}
	if density < hybridDensity {
		return DocClassHybrid
	}
	return DocClassText
}
