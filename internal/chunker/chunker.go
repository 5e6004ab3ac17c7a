package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/BerylCAtieno/document-task-extractor/internal/models"
)

// breakSearchWindow is how far back from the hard limit a natural break is searched for.
const breakSearchWindow = 1000

// Options controls chunk sizing. Sizes are in bytes of UTF-8 text.
type Options struct {
	MaxChunkSize int
	Overlap      int
	MaxChunks    int
}

// Result holds the produced chunks. Truncated is set when text remained after
// MaxChunks chunks were emitted.
type Result struct {
	Chunks    []models.TextChunk
	Truncated bool
}

var sentenceEnds = []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}

// Split cuts text into chunks of at most MaxChunkSize, preferring paragraph
// breaks, then sentence breaks, then a hard boundary. The cursor advances on
// every iteration regardless of input shape.
func Split(text string, opts Options) Result {
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = len(text)
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.MaxChunkSize {
		opts.Overlap = 0
	}

	if len(text) <= opts.MaxChunkSize {
		if strings.TrimSpace(text) == "" {
			return Result{}
		}
		return Result{Chunks: []models.TextChunk{{Content: text, Index: 0, IsFirst: true}}}
	}

	var res Result
	cursor := skipSpace(text, 0)

	for cursor < len(text) {
		if opts.MaxChunks > 0 && len(res.Chunks) >= opts.MaxChunks {
			res.Truncated = true
			break
		}

		end := cursor + opts.MaxChunkSize
		if end >= len(text) {
			end = len(text)
		} else {
			end = findBreak(text, cursor, end)
		}

		res.Chunks = append(res.Chunks, models.TextChunk{
			Content: text[cursor:end],
			Index:   len(res.Chunks),
			IsFirst: len(res.Chunks) == 0,
		})

		if end >= len(text) {
			break
		}

		next := end
		if opts.Overlap > 0 {
			if back := alignRuneStart(text, end-opts.Overlap); back > cursor {
				next = back
			}
		}
		cursor = skipSpace(text, next)
	}

	return res
}

// findBreak returns a break position in (cursor, limit].
func findBreak(text string, cursor, limit int) int {
	searchStart := limit - breakSearchWindow
	if searchStart <= cursor {
		searchStart = cursor + 1
	}
	window := text[searchStart:limit]

	if i := strings.LastIndex(window, "\n\n"); i >= 0 {
		if pos := searchStart + i; pos > cursor {
			return pos
		}
	}

	best := -1
	for _, sep := range sentenceEnds {
		if i := strings.LastIndex(window, sep); i > best {
			best = i
		}
	}
	if best >= 0 {
		// keep the terminating punctuation in this chunk
		return searchStart + best + 1
	}

	if pos := alignRuneStart(text, limit); pos > cursor {
		return pos
	}
	return limit
}

// alignRuneStart moves pos back to the start of the rune containing it.
func alignRuneStart(text string, pos int) int {
	if pos <= 0 {
		return 0
	}
	if pos >= len(text) {
		return len(text)
	}
	for pos > 0 && !utf8.RuneStart(text[pos]) {
		pos--
	}
	return pos
}

func skipSpace(text string, pos int) int {
	for pos < len(text) {
		r, size := utf8.DecodeRuneInString(text[pos:])
		if !unicode.IsSpace(r) {
			break
		}
		pos += size
	}
	return pos
}
