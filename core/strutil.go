package core

// Itoa converts an integer to a string without using fmt package
// This is a lightweight alternative for embedded systems
func Itoa(n int) string {
	if n == 0 {
		return "0"
	}

	negative := n < 0
	if negative {
		n = -n
	}

	var buf [20]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}

	if negative {
		pos--
		buf[pos] = '-'
	}

	return string(buf[pos:])
}

// Ftoa formats v with a fixed number of decimals (at most 9)
func Ftoa(v float64, decimals int) string {
	if decimals > 9 {
		decimals = 9
	}
	negative := v < 0
	if negative {
		v = -v
	}

	scale := 1
	for i := 0; i < decimals; i++ {
		scale *= 10
	}
	scaled := int(v*float64(scale) + 0.5)
	whole := scaled / scale
	frac := scaled % scale

	s := Itoa(whole)
	if negative && scaled != 0 {
		s = "-" + s
	}
	if decimals == 0 {
		return s
	}

	digits := []byte(Itoa(frac))
	for len(digits) < decimals {
		digits = append([]byte{'0'}, digits...)
	}
	return s + "." + string(digits)
}
