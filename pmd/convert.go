package pmd

// Quantity is the physical kind of a channel reading.
type Quantity int

const (
	Voltage Quantity = iota
	Current
)

func (q Quantity) String() string {
	if q == Current {
		return "current"
	}
	return "voltage"
}

// Unit returns the SI unit symbol for the quantity.
func (q Quantity) Unit() string {
	if q == Current {
		return "A"
	}
	return "V"
}

// Scale factors from calibrated ADC code to physical units.
const (
	VoltsPerLSB = 0.007568
	AmpsPerLSB  = 0.0488
)

// SignExtend12 interprets the low 12 bits of code as a two's-complement
// value.
func SignExtend12(code uint16) int {
	v := int(code & 0x0FFF)
	if v&0x800 != 0 {
		v -= 0x1000
	}
	return v
}

// Convert maps a raw little-endian 16-bit ADC word to a physical value. The
// meaningful code occupies the upper 12 bits of the word; the signed
// calibration offset is added before scaling. Total over all inputs.
func Convert(raw uint16, offset int8, q Quantity) float64 {
	code := SignExtend12(raw>>4) + int(offset)
	if q == Current {
		return float64(code) * AmpsPerLSB
	}
	return float64(code) * VoltsPerLSB
}
