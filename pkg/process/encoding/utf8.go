// Package encoding provides pure byte-pattern validation helpers.
package encoding

// ValidUTF8 reports whether data is a valid UTF-8 byte sequence. Each integer
// represents one byte (0-255); multi-byte characters need 2-4 bytes whose
// leading byte declares the width and whose continuations match 10xxxxxx.
func ValidUTF8(data []int) bool {
	continuations := 0

	for _, b := range data {
		if b < 0 || b > 255 {
			return false
		}

		if continuations == 0 {
			switch {
			case b>>7 == 0b0:
				// Single-byte character.
			case b>>5 == 0b110:
				continuations = 1
			case b>>4 == 0b1110:
				continuations = 2
			case b>>3 == 0b11110:
				continuations = 3
			default:
				return false
			}
			continue
		}

		if b>>6 != 0b10 {
			return false
		}
		continuations--
	}

	return continuations == 0
}
