// xtoa.go implements functions for converting signed integer and floating point numbers into string representations.
// They are used for printing immediates and constants in listings.

package xtoa

// ItoA converts a signed integer to its decimal representation.
func ItoA(i int64) string {
	if i == 0 {
		return "0"
	}
	res := make([]byte, 24) // -(2^63) has 20 characters.
	neg := i < 0

	// Set start index to last index of buffer.
	i1 := len(res) - 1

	// Insert digits back-to-front. Digits are taken from the negative value to cover the minimum integer.
	if !neg {
		i = -i
	}
	for ; i != 0; i1-- {
		res[i1] = byte('0' - i%10)
		i /= 10
	}

	if neg {
		res[i1] = '-'
		i1--
	}
	return string(res[i1+1:])
}

// HtoA converts an unsigned integer to its hexadecimal representation with a 0x prefix.
func HtoA(u uint64) string {
	const digits = "0123456789abcdef"
	if u == 0 {
		return "0x0"
	}
	res := make([]byte, 18)
	i1 := len(res) - 1
	for ; u != 0; i1-- {
		res[i1] = digits[u&0xf]
		u >>= 4
	}
	res[i1] = 'x'
	res[i1-1] = '0'
	return string(res[i1-1:])
}

// FtoA converts a float to its decimal representation with 4 decimal precision.
func FtoA(f float64) string {
	res := make([]byte, 0, 32)

	// Check for negative value.
	if f < 0 {
		f = -f
		res = append(res, '-')
	}

	ip := int64(f)          // Integer part.
	fp := f - float64(ip)   // Decimal part.
	dp := int64(fp * 10000) // 4 decimal precision.

	res = append(res, ItoA(ip)...)
	res = append(res, '.')

	// Pad the decimal part with leading zeros.
	tmp := ItoA(dp)
	for i1 := len(tmp); i1 < 4; i1++ {
		res = append(res, '0')
	}
	res = append(res, tmp...)
	return string(res)
}
