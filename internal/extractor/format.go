package extractor

import (
	"path/filepath"
	"strings"
)

// Format is the coarse file type of an upload.
type Format string

const (
	FormatCSV     Format = "CSV"
	FormatTXT     Format = "TXT"
	FormatPDF     Format = "PDF"
	FormatUnknown Format = "UNKNOWN"
)

// DetectFormat classifies a file by its extension. The result is only used
// for logging; extraction sends every format through the same prompt.
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV
	case ".txt":
		return FormatTXT
	case ".pdf":
		return FormatPDF
	default:
		return FormatUnknown
	}
}
