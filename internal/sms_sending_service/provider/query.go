package provider

import "strings"

// queryBuilder keeps parameters in insertion order. url.Values sorts keys,
// which the gateway tolerates but which would change the request bytes.
type queryBuilder struct {
	parts []string
}

func (q *queryBuilder) add(key, value string) {
	q.parts = append(q.parts, key+"="+EncodeURIComponent(value))
}

func (q *queryBuilder) String() string {
	return strings.Join(q.parts, "&")
}

// EncodeURIComponent escapes s the way ECMAScript encodeURIComponent does:
// every UTF-8 byte is percent-encoded except A-Z a-z 0-9 - _ . ! ~ * ' ( ).
// url.QueryEscape differs (space becomes '+', and !'()* are escaped).
func EncodeURIComponent(s string) string {
	const upperhex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
