package rendering

import (
	"regexp"
	"strings"

	"github.com/jonathan/cv-generator/internal/lifecycle"
)

// ContentTypeDOCX is the media type of rendered documents
const ContentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

const fallbackName = "candidate"

var whitespaceRun = regexp.MustCompile(`\s+`)

// OutputFilename is the download name for a rendered CV, e.g. "CV_B2B_Jan_Kowalski.docx".
func OutputFilename(candidateName string) string {
	name := whitespaceRun.ReplaceAllString(strings.TrimSpace(candidateName), "_")
	name = lifecycle.SanitizeFilename(name)
	if strings.Trim(name, "._") == "" {
		name = fallbackName
	}
	return "CV_B2B_" + name + ".docx"
}
