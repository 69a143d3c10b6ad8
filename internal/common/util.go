// Package common contains small helpers shared across authflow components.
package common

// WipeByteArray overwrites the buffer with zeros. Use it to scrub passwords
// and other short-lived secrets once they are no longer needed.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
