package sqlguard

import "strings"

// Scanned is SQL text annotated per byte with whether the byte sits inside
// a quoted literal or identifier, and with its parenthesis depth. Keyword
// searches only look at unquoted bytes, so 'DROP' inside a LIKE pattern is
// never mistaken for a statement.
type Scanned struct {
	Text   string
	Quoted []bool
	Depth  []int
	// Open is set when the text ends inside a quote.
	Open bool
}

// Scan annotates s. A doubled quote character inside a quote is an
// escaped quote.
func Scan(s string) Scanned {
	out := Scanned{Text: s, Quoted: make([]bool, len(s)), Depth: make([]int, len(s))}
	var quote byte
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			out.Quoted[i] = true
			out.Depth[i] = depth
			if c == quote {
				if i+1 < len(s) && s[i+1] == quote {
					out.Quoted[i+1] = true
					i++
				} else {
					quote = 0
				}
			}
		case c == '\'' || c == '"':
			out.Quoted[i] = true
			quote = c
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		}
		out.Depth[i] = depth
	}
	out.Open = quote != 0
	return out
}

// Unquoted returns the text with every quoted byte replaced by a space.
// Offsets are preserved.
func (t Scanned) Unquoted() string {
	b := []byte(t.Text)
	for i := range b {
		if t.Quoted[i] {
			b[i] = ' '
		}
	}
	return string(b)
}

// KeywordAt reports whether the unquoted keyword kw starts at i with word
// boundaries on both sides. The comparison ignores case.
func (t Scanned) KeywordAt(i int, kw string) bool {
	if i < 0 || i+len(kw) > len(t.Text) || t.Quoted[i] {
		return false
	}
	if !strings.EqualFold(t.Text[i:i+len(kw)], kw) {
		return false
	}
	if i > 0 && IsIdentByte(t.Text[i-1]) {
		return false
	}
	if end := i + len(kw); end < len(t.Text) && IsIdentByte(t.Text[end]) {
		return false
	}
	return true
}

// Index returns the first position at or after from where kw occurs
// unquoted, or -1. With topLevel set, only parenthesis depth 0 counts.
func (t Scanned) Index(kw string, from int, topLevel bool) int {
	for i := max(from, 0); i < len(t.Text); i++ {
		if topLevel && t.Depth[i] != 0 {
			continue
		}
		if t.KeywordAt(i, kw) {
			return i
		}
	}
	return -1
}

// Count returns the number of unquoted occurrences of kw.
func (t Scanned) Count(kw string) int {
	n := 0
	for i := 0; i < len(t.Text); i++ {
		if t.KeywordAt(i, kw) {
			n++
			i += len(kw) - 1
		}
	}
	return n
}

// IndexByte returns the first unquoted occurrence of c, or -1.
func (t Scanned) IndexByte(c byte) int {
	for i := 0; i < len(t.Text); i++ {
		if t.Text[i] == c && !t.Quoted[i] {
			return i
		}
	}
	return -1
}

// CountByte returns the number of unquoted occurrences of c.
func (t Scanned) CountByte(c byte) int {
	n := 0
	for i := 0; i < len(t.Text); i++ {
		if t.Text[i] == c && !t.Quoted[i] {
			n++
		}
	}
	return n
}

// IsIdentByte reports whether c can appear in an unquoted identifier.
func IsIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
