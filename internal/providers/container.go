package providers

// ISO 6346 container number validation. A container number is four upper-case
// letters (owner code + equipment category) followed by six digits and a check
// digit computed from the first ten characters.

// Letter values skip multiples of 11 per the standard.
var containerLetterValues = map[byte]int{
	'A': 10, 'B': 12, 'C': 13, 'D': 14, 'E': 15, 'F': 16, 'G': 17, 'H': 18,
	'I': 19, 'J': 20, 'K': 21, 'L': 23, 'M': 24, 'N': 25, 'O': 26, 'P': 27,
	'Q': 28, 'R': 29, 'S': 30, 'T': 31, 'U': 32, 'V': 34, 'W': 35, 'X': 36,
	'Y': 37, 'Z': 38,
}

// LooksLikeContainerNumber reports whether s has the ISO 6346 shape
// (AAAU1234567). Shape only; the check digit is not verified.
func LooksLikeContainerNumber(s string) bool {
	if len(s) != 11 {
		return false
	}
	for i := 0; i < 4; i++ {
		if _, ok := containerLetterValues[s[i]]; !ok {
			return false
		}
	}
	for i := 4; i < 11; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ValidContainerNumber reports whether s is a well-formed ISO 6346 container
// number with a correct check digit.
func ValidContainerNumber(s string) bool {
	if !LooksLikeContainerNumber(s) {
		return false
	}
	return containerCheckDigit(s) == int(s[10]-'0')
}

func containerCheckDigit(s string) int {
	sum := 0
	weight := 1
	for i := 0; i < 10; i++ {
		var v int
		if i < 4 {
			v = containerLetterValues[s[i]]
		} else {
			v = int(s[i] - '0')
		}
		sum += v * weight
		weight *= 2
	}
	return (sum % 11) % 10
}
