package pmd

import "fmt"

// maxKnownFirmware is the newest firmware revision whose config layout is
// known. Versions beyond it may have changed the structure size again, so
// they are refused rather than guessed at.
const maxKnownFirmware = 12

// CalibrationData holds the 8 per-channel signed calibration offsets for
// the session, index-mapped 1:1 to the fixed channel order. Populated once
// after the device identity is known and read-only afterwards.
type CalibrationData [NumChannels]int8

// Offset returns the calibration offset for the channel.
func (c CalibrationData) Offset(ch Channel) int8 {
	return c[ch]
}

// configLayout selects the config structure variant for a firmware version:
// legacy below 5, extended from 5 up to the newest known revision.
func configLayout(firmware byte) (length int, extended bool, err error) {
	switch {
	case firmware < 5:
		return configLenLegacy, false, nil
	case firmware <= maxKnownFirmware:
		return configLenV5, true, nil
	default:
		return 0, false, fmt.Errorf("%w: firmware version %d", ErrUnsupportedFirmware, firmware)
	}
}

// ConfigLen returns the CmdReadConfig response length for the firmware
// version reported by the device.
func ConfigLen(id DeviceID) (int, error) {
	n, _, err := configLayout(id.Firmware)
	return n, err
}

// LoadCalibration selects the config structure variant by firmware version,
// decodes it and extracts the per-channel offset array.
func LoadCalibration(id DeviceID, raw []byte) (CalibrationData, error) {
	var cal CalibrationData
	_, extended, err := configLayout(id.Firmware)
	if err != nil {
		return cal, err
	}
	cfg, err := DecodeConfig(raw, extended)
	if err != nil {
		return cal, err
	}
	copy(cal[:], cfg.AdcOffset[:])
	return cal, nil
}
