package billingcycle

import "errors"

// ErrInvalidDate is returned for a zero or malformed input date.
var ErrInvalidDate = errors.New("billingcycle: invalid date")
