package xero

import "strings"

// FormatMap substitutes {key} placeholders from fields. Missing keys render
// as empty strings, never error. Unmatched braces pass through untouched.
func FormatMap(template string, fields map[string]string) string {
	var b strings.Builder
	b.Grow(len(template))

	for i := 0; i < len(template); i++ {
		ch := template[i]
		if ch != '{' {
			b.WriteByte(ch)
			continue
		}
		end := strings.IndexByte(template[i+1:], '}')
		if end < 0 {
			b.WriteString(template[i:])
			break
		}
		key := template[i+1 : i+1+end]
		b.WriteString(fields[key])
		i += end + 1
	}
	return b.String()
}
