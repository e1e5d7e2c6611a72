package work

// ZeroPadding is P_n, it extends x with zeros up to the next multiple of n
// (eq. 14.17 v0.6.7). The input is never modified.
func ZeroPadding(x []byte, n uint) []byte {
	if n == 0 {
		return x
	}
	size := (uint(len(x)) + n - 1) / n * n
	if size == uint(len(x)) {
		return x
	}
	padded := make([]byte, size)
	copy(padded, x)
	return padded
}
