package pmd

// Rail pairs the voltage and current channels of one supply rail. Power is
// a downstream computation over a decoded sample, not a wire quantity.
type Rail struct {
	Name    string
	Voltage Channel
	Current Channel
}

// Rails lists the four measured supply rails in channel order.
var Rails = [4]Rail{
	{"PCIE1", PCIE1Voltage, PCIE1Current},
	{"PCIE2", PCIE2Voltage, PCIE2Current},
	{"EPS1", EPS1Voltage, EPS1Current},
	{"EPS2", EPS2Voltage, EPS2Current},
}

// Power returns the rail's power in watts for the sample, or 0 if either
// channel is absent from it.
func (r Rail) Power(s Sample) float64 {
	return s.Values[r.Voltage] * s.Values[r.Current]
}

// TotalPower sums the power of all rails present in the sample.
func TotalPower(s Sample) float64 {
	total := 0.0
	for _, r := range Rails {
		total += r.Power(s)
	}
	return total
}
