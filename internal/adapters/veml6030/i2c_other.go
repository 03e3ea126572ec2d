//go:build !linux

package veml6030

import (
	"github.com/quentinrf/luxpipe/internal/domain"
)

func openBus(adapter string, address uint16) (Bus, error) {
	return nil, domain.NewSensorError(domain.SensorErrDevice, "i2c-dev adapters are only available on linux", nil)
}
