package bitstream

import "fmt"

func errFieldWidth(width uint8) error {
	return fmt.Errorf("bit field width %d out of range 1..8", width)
}

func errInvalidAlign(n int) error {
	return fmt.Errorf("align boundary %d must be positive", n)
}
