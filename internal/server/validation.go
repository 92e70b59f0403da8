// validation.go - Upload validation and stored-name generation
package server

import (
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"sync/atomic"
	"time"
	"unicode"
	"unicode/utf8"
)

// allowedTypes are the content types accepted for upload, mapped to the
// type recorded with the stored asset.
var allowedTypes = map[string]string{
	"image/png":  "image/png",
	"image/jpeg": "image/jpeg",
	"image/jpg":  "image/jpeg",
	"image/webp": "image/webp",
}

// maxBaseNameBytes keeps generated names under common filesystem limits.
const maxBaseNameBytes = 200

var whitespaceRun = regexp.MustCompile(`[\s\v\p{Z}\x{FEFF}]+`)

// normaliseContentType lowercases ct and drops any parameters.
func normaliseContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// needsSniffing reports whether the declared type says nothing useful.
func needsSniffing(ct string) bool {
	return ct == "" || ct == "application/octet-stream"
}

// validateUpload checks a file part before any byte of it is stored.
// contentType must already be normalised.
func validateUpload(filename, contentType string) error {
	if filename == "" {
		return errNoFile()
	}
	if _, ok := allowedTypes[contentType]; !ok {
		return errInvalidType(contentType)
	}
	return nil
}

// sanitizeName reduces a client-supplied filename to a base name with
// every whitespace run replaced by "-".
func sanitizeName(original string) string {
	base := path.Base(strings.ReplaceAll(original, `\`, "/"))
	if base == "." || base == "/" || base == ".." {
		base = "file"
	}

	base = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, base)
	base = whitespaceRun.ReplaceAllString(base, "-")

	if len(base) > maxBaseNameBytes {
		cut := len(base) - maxBaseNameBytes
		for cut < len(base) && !utf8.RuneStart(base[cut]) {
			cut++
		}
		base = base[cut:]
	}
	if base == "" {
		base = "file"
	}
	return base
}

// generateName builds "<ms-timestamp>-<sanitized name>".
func generateName(millis int64, original string) string {
	return fmt.Sprintf("%d-%s", millis, sanitizeName(original))
}

// nameClock issues strictly increasing millisecond timestamps. When
// requests land in the same millisecond the value is bumped past the last
// one issued.
type nameClock struct {
	last atomic.Int64
	now  func() time.Time
}

func newNameClock() *nameClock {
	return &nameClock{now: time.Now}
}

func (c *nameClock) next() int64 {
	for {
		now := c.now().UnixMilli()
		last := c.last.Load()
		if now <= last {
			now = last + 1
		}
		if c.last.CompareAndSwap(last, now) {
			return now
		}
	}
}

// sizeLimitReader passes through at most limit bytes and fails with a
// too-large error as soon as one more byte shows up.
type sizeLimitReader struct {
	r         io.Reader
	remaining int64
}

func (l *sizeLimitReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, errTooLarge(nil)
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, errTooLarge(nil)
	}
	return n, err
}
