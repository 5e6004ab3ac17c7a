package extractor

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatTXT  Format = "txt"
)

const (
	MIMEPDF  = "application/pdf"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMETXT  = "text/plain"
)

var ErrUnsupportedFormat = errors.New("unsupported file type")

// Detect sniffs the file content. The filename extension only settles cases
// the content alone leaves open, such as a DOCX that sniffs as a plain zip.
func Detect(data []byte, filename string) (Format, string, error) {
	mtype := mimetype.Detect(data)
	ext := strings.ToLower(filepath.Ext(filename))

	switch {
	case mtype.Is(MIMEPDF):
		return FormatPDF, MIMEPDF, nil
	case mtype.Is(MIMEDOCX):
		return FormatDOCX, MIMEDOCX, nil
	case mtype.Is("application/zip") && ext == ".docx":
		return FormatDOCX, MIMEDOCX, nil
	case strings.HasPrefix(mtype.String(), "text/"):
		return FormatTXT, MIMETXT, nil
	case ext == ".txt" && ValidateTXT(data) == nil:
		return FormatTXT, MIMETXT, nil
	}

	return "", mtype.String(), fmt.Errorf("%w: %s", ErrUnsupportedFormat, mtype.String())
}

// Extract detects the format and returns the document's plain text.
func Extract(data []byte, filename string) (string, Format, error) {
	format, _, err := Detect(data, filename)
	if err != nil {
		return "", "", err
	}

	var text string
	switch format {
	case FormatPDF:
		text, err = ExtractPDF(data)
	case FormatDOCX:
		text, err = ExtractDOCX(data)
	default:
		text, err = ExtractTXT(data)
	}
	if err != nil {
		return "", format, err
	}
	return text, format, nil
}
