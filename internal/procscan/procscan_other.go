//go:build !darwin

package procscan

// New returns the preferred Scanner for this platform.
func New() Scanner {
	return NewPSScanner()
}
