//go:build linux

package veml6030

import (
	"encoding/binary"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/quentinrf/luxpipe/internal/domain"
)

// linux/i2c-dev.h and linux/i2c.h
const (
	ioctlI2CSlave = 0x0703
	ioctlI2CSMBus = 0x0720

	smbusRead     = 1
	smbusWrite    = 0
	smbusWordData = 3
)

// union i2c_smbus_data
type smbusData [34]byte

// struct i2c_smbus_ioctl_data
type smbusIoctlData struct {
	readWrite uint8
	command   uint8
	size      uint32
	data      *smbusData
}

type devBus struct {
	mu sync.Mutex
	fd int
}

func openBus(adapter string, address uint16) (Bus, error) {
	fd, err := unix.Open(adapter, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, domain.NewSensorError(domain.SensorErrDevice,
			fmt.Sprintf("could not open %s; are you using the right port?", adapter), err)
	}

	if err := unix.IoctlSetInt(fd, ioctlI2CSlave, int(address)); err != nil {
		unix.Close(fd)
		return nil, domain.NewSensorError(domain.SensorErrDriver,
			fmt.Sprintf("could not select device %#02x", address), err)
	}

	return &devBus{fd: fd}, nil
}

func (b *devBus) access(readWrite uint8, command uint8, data *smbusData) error {
	args := smbusIoctlData{
		readWrite: readWrite,
		command:   command,
		size:      smbusWordData,
		data:      data,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(b.fd), uintptr(ioctlI2CSMBus), uintptr(unsafe.Pointer(&args)))
	if errno != 0 {
		return errno
	}
	return nil
}

func (b *devBus) ReadWord(reg uint8) (uint16, error) {
	var data smbusData
	if err := b.access(smbusRead, reg, &data); err != nil {
		return 0, err
	}
	return binary.NativeEndian.Uint16(data[:2]), nil
}

func (b *devBus) WriteWord(reg uint8, value uint16) error {
	var data smbusData
	binary.NativeEndian.PutUint16(data[:2], value)
	return b.access(smbusWrite, reg, &data)
}

func (b *devBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return unix.Close(b.fd)
}
