package logger

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxFieldRunes caps how much of a user supplied value reaches the log.
const MaxFieldRunes = 200

// SanitizeForLog escapes control characters so user supplied values (file
// names, form fields) cannot forge log lines or drive the terminal. Printable
// Unicode is kept. Values longer than MaxFieldRunes are cut and marked.
func SanitizeForLog(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	n := 0
	for _, r := range s {
		if n == MaxFieldRunes {
			b.WriteString("...")
			break
		}
		n++

		switch {
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == utf8.RuneError:
			b.WriteString(`�`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		case r >= 0x80 && r <= 0x9f:
			// C1 controls; 0x9b alone starts an ANSI sequence on some terminals.
			fmt.Fprintf(&b, `\u%04x`, r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
