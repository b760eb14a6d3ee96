package i2c

import "fmt"

// DevicePath returns the i2c-dev character device for a bus number.
func DevicePath(bus int) string {
	return fmt.Sprintf("/dev/i2c-%d", bus)
}
