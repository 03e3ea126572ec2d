package veml6030

import "fmt"

// Register addresses
const (
	regConfig      uint8 = 0x00
	regPowerSaving uint8 = 0x03
	regALS         uint8 = 0x04
	regWhite       uint8 = 0x05
)

// DefaultAddress is the 7-bit bus address with ADDR pulled low.
const DefaultAddress = 0x48

// DefaultAdapter is the i2c character device used when none is configured.
const DefaultAdapter = "/dev/i2c-3"

// Gain is the ALS_GAIN field of the configuration register.
type Gain uint16

const (
	Gain1     Gain = 0x0000
	Gain2     Gain = 0x0800
	GainOne8  Gain = 0x1000 // x1/8
	GainOne4  Gain = 0x1800 // x1/4
	gainMask       = 0x1800
)

// IntegrationTime is the ALS_IT field of the configuration register.
type IntegrationTime uint16

const (
	IT25ms  IntegrationTime = 0x0300
	IT50ms  IntegrationTime = 0x0200
	IT100ms IntegrationTime = 0x0000
	IT200ms IntegrationTime = 0x0040
	IT400ms IntegrationTime = 0x0080
	IT800ms IntegrationTime = 0x00C0
	itMask                  = 0x03C0
)

// Persistence is the ALS_PERS field of the configuration register.
type Persistence uint16

const (
	Pers1    Persistence = 0x0000
	Pers2    Persistence = 0x0010
	Pers4    Persistence = 0x0020
	Pers8    Persistence = 0x0030
	persMask             = 0x0030
)

const (
	shutdownBit uint16 = 0x0001
	powerOn     uint16 = 0x0000
)

// Config is the decoded configuration register.
type Config struct {
	Gain        Gain
	Integration IntegrationTime
	Persistence Persistence
	Shutdown    bool
}

// DefaultConfig powers the sensor on at gain x2, 100ms, persistence 1.
var DefaultConfig = Config{
	Gain:        Gain2,
	Integration: IT100ms,
	Persistence: Pers1,
}

func (c Config) word() uint16 {
	w := uint16(c.Gain) | uint16(c.Integration) | uint16(c.Persistence) | powerOn
	if c.Shutdown {
		w |= shutdownBit
	}
	return w
}

func decodeConfig(w uint16) Config {
	return Config{
		Gain:        Gain(w & gainMask),
		Integration: IntegrationTime(w & itMask),
		Persistence: Persistence(w & persMask),
		Shutdown:    w&shutdownBit != 0,
	}
}

// lux per count, rows by integration time (800ms first), columns by gain
// (x2, x1, x1/8, x1/4).
var resolutionTable = [6][4]float64{
	{0.0036, 0.0072, 0.0288, 0.0576},
	{0.0072, 0.0144, 0.0576, 0.1152},
	{0.0144, 0.0288, 0.1152, 0.2304},
	{0.0288, 0.0576, 0.2304, 0.4608},
	{0.0576, 0.1152, 0.4608, 0.9216},
	{0.1152, 0.2304, 0.9216, 1.8432},
}

// Resolution returns the lux represented by one count at the given settings.
func Resolution(gain Gain, it IntegrationTime) (float64, error) {
	column := -1
	switch gain {
	case Gain2:
		column = 0
	case Gain1:
		column = 1
	case GainOne8:
		column = 2
	case GainOne4:
		column = 3
	}

	row := -1
	switch it {
	case IT800ms:
		row = 0
	case IT400ms:
		row = 1
	case IT200ms:
		row = 2
	case IT100ms:
		row = 3
	case IT50ms:
		row = 4
	case IT25ms:
		row = 5
	}

	if column < 0 || row < 0 {
		return 0, fmt.Errorf("no resolution for gain %#04x, integration time %#04x", uint16(gain), uint16(it))
	}
	return resolutionTable[row][column], nil
}
