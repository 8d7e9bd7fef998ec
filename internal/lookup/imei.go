package lookup

import "errors"

// ErrInvalidIMEI is returned for device identifiers that are not well-formed
// IMEIs.
var ErrInvalidIMEI = errors.New("invalid IMEI")

// ValidateIMEI checks that a device identifier is a 15-digit IMEI with a
// valid Luhn check digit.
func ValidateIMEI(imei string) error {
	if len(imei) != 15 {
		return ErrInvalidIMEI
	}

	sum := 0
	for i, r := range imei {
		if r < '0' || r > '9' {
			return ErrInvalidIMEI
		}
		d := int(r - '0')
		if i%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	if sum%10 != 0 {
		return ErrInvalidIMEI
	}
	return nil
}
