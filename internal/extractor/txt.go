package extractor

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

func ExtractTXT(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty text file")
	}

	text, err := decodeText(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode text file: %w", err)
	}

	text = cleanText(text)
	if text == "" {
		return "", fmt.Errorf("no text could be extracted from file")
	}

	return text, nil
}

// decodeText honours a UTF-8 or UTF-16 byte order mark. Without one, valid
// UTF-8 is taken as is and anything else is read as Windows-1252.
func decodeText(data []byte) (string, error) {
	var fallback transform.Transformer = xunicode.UTF8.NewDecoder()
	if !utf8.Valid(data) {
		fallback = charmap.Windows1252.NewDecoder()
	}

	decoded, _, err := transform.Bytes(xunicode.BOMOverride(fallback), data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// cleanText only normalizes line endings and drops NULs. Blank lines are kept
// because they mark paragraph boundaries for chunking.
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\x00", "")
	return strings.TrimSpace(text)
}

const textSampleSize = 512

// ValidateTXT rejects data whose leading sample is mostly non-printable.
func ValidateTXT(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty file")
	}

	sample := data[:min(len(data), textSampleSize)]
	total, printable := 0, 0
	for len(sample) > 0 {
		r, size := utf8.DecodeRune(sample)
		sample = sample[size:]
		total++
		if r != utf8.RuneError && (unicode.IsPrint(r) || unicode.IsSpace(r)) {
			printable++
		}
	}

	if float64(printable)/float64(total) < 0.8 {
		return fmt.Errorf("file does not appear to be valid text")
	}
	return nil
}
