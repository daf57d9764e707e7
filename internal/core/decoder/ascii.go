package decoder

import "strings"

// minExcerpt is the number of printable characters an excerpt must exceed.
const minExcerpt = 3

// ASCIIExcerpt keeps the printable ASCII bytes of payload. Results of three
// characters or fewer are discarded. Never fails.
func ASCIIExcerpt(payload []byte) string {
	var b strings.Builder
	for _, c := range payload {
		if c >= 0x20 && c <= 0x7E {
			b.WriteByte(c)
		}
	}
	if b.Len() <= minExcerpt {
		return ""
	}
	return strings.TrimSpace(b.String())
}
