package planner

// Alias maps a table index to its SQL alias: 0 is "a", 25 is "z", 26 is
// "aa", 27 is "ab" and so on. Equal indexes always give equal aliases.
func Alias(n int) string {
	if n < 0 {
		panic("planner: negative table index")
	}
	var buf [16]byte
	i := len(buf)
	for {
		i--
		buf[i] = byte('a' + n%26)
		n = n/26 - 1
		if n < 0 {
			break
		}
	}
	return string(buf[i:])
}
