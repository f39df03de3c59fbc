package vin

// Transliteration values and position weights from 49 CFR 565.15.
var (
	transliteration = map[byte]int{
		'A': 1, 'B': 2, 'C': 3, 'D': 4, 'E': 5, 'F': 6, 'G': 7, 'H': 8,
		'J': 1, 'K': 2, 'L': 3, 'M': 4, 'N': 5, 'P': 7, 'R': 9,
		'S': 2, 'T': 3, 'U': 4, 'V': 5, 'W': 6, 'X': 7, 'Y': 8, 'Z': 9,
	}
	positionWeights = [Length]int{8, 7, 6, 5, 4, 3, 2, 10, 0, 9, 8, 7, 6, 5, 4, 3, 2}
)

// CheckDigit computes the weighted check digit for a 17-character VIN.
// ok is false when s is not 17 VIN characters.
//
// Validate does not call this: only North American VINs are required to carry
// a computed check digit.
func CheckDigit(s string) (digit byte, ok bool) {
	if len(s) != Length {
		return 0, false
	}
	sum := 0
	for i := 0; i < Length; i++ {
		c := byte(upperASCII(rune(s[i])))
		var v int
		switch {
		case c >= '0' && c <= '9':
			v = int(c - '0')
		default:
			t, found := transliteration[c]
			if !found {
				return 0, false
			}
			v = t
		}
		sum += v * positionWeights[i]
	}
	rem := sum % 11
	if rem == 10 {
		return 'X', true
	}
	return byte('0' + rem), true
}

// HasValidCheckDigit reports whether position 9 matches the computed check digit.
func HasValidCheckDigit(s string) bool {
	digit, ok := CheckDigit(s)
	if !ok {
		return false
	}
	return byte(upperASCII(rune(s[8]))) == digit
}
