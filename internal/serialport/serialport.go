// Package serialport lists serial ports and probes for an Arduino
// (STK500v1) bootloader on them.
package serialport

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"go.bug.st/serial"

	lerrors "github.com/chazuruo/ledupdater/internal/errors"
	"github.com/chazuruo/ledupdater/internal/logging"
)

// Bauds are tried in order by DetectBaud: new Optiboot, then old bootloader.
var Bauds = []int{115200, 57600}

var (
	syncCmd    = []byte{0x30, 0x20} // STK_GET_SYNC, CRC_EOP
	inSyncResp = []byte{0x14, 0x10} // STK_INSYNC, STK_OK
)

const (
	resetDelay  = 250 * time.Millisecond
	shortDelay  = 50 * time.Millisecond
	readTimeout = 250 * time.Millisecond
	syncTries   = 4
)

// Port is the part of serial.Port the probe needs.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	ResetInputBuffer() error
	SetDTR(dtr bool) error
	SetRTS(rts bool) error
	SetReadTimeout(t time.Duration) error
	Close() error
}

// Prober talks to serial ports. The zero value is not usable; use New.
type Prober struct {
	list  func() ([]string, error)
	open  func(name string, baud int) (Port, error)
	sleep func(time.Duration)
}

// New returns a Prober backed by go.bug.st/serial.
func New() *Prober {
	return &Prober{
		list: serial.GetPortsList,
		open: func(name string, baud int) (Port, error) {
			return serial.Open(name, &serial.Mode{BaudRate: baud})
		},
		sleep: time.Sleep,
	}
}

// List returns the serial ports present, sorted by name.
func (p *Prober) List() ([]string, error) {
	ports, err := p.list()
	if err != nil {
		return nil, lerrors.E("list ports", lerrors.ErrIO, "", err)
	}
	sort.Strings(ports)
	return ports, nil
}

// ProbeBootloader resets the board through DTR/RTS and checks whether the
// bootloader answers STK_GET_SYNC at baud.
func (p *Prober) ProbeBootloader(name string, baud int) (bool, error) {
	log := logging.For("serialport").WithField("port", name).WithField("baud", baud)

	port, err := p.open(name, baud)
	if err != nil {
		return false, lerrors.E("open port", lerrors.ErrIO, name, err)
	}
	defer func() { _ = port.Close() }()

	if err := port.SetReadTimeout(readTimeout); err != nil {
		return false, lerrors.E("configure port", lerrors.ErrIO, name, err)
	}

	// pulse DTR/RTS to reset into the bootloader
	_ = port.SetDTR(false)
	_ = port.SetRTS(false)
	p.sleep(resetDelay)
	_ = port.SetDTR(true)
	_ = port.SetRTS(true)
	p.sleep(shortDelay)
	_ = port.ResetInputBuffer()

	for i := 0; i < syncTries; i++ {
		if _, err := port.Write(syncCmd); err != nil {
			return false, lerrors.E("write port", lerrors.ErrIO, name, err)
		}
		p.sleep(shortDelay)

		resp, err := readN(port, len(inSyncResp))
		if err != nil {
			return false, lerrors.E("read port", lerrors.ErrIO, name, err)
		}
		if bytes.Equal(resp, inSyncResp) {
			log.Debug("bootloader in sync")
			return true, nil
		}
		_ = port.ResetInputBuffer()
	}
	log.Debug("no bootloader response")
	return false, nil
}

// DetectBaud returns the first of Bauds at which the bootloader syncs.
func (p *Prober) DetectBaud(name string) (int, error) {
	for _, baud := range Bauds {
		ok, err := p.ProbeBootloader(name, baud)
		if err != nil {
			return 0, err
		}
		if ok {
			return baud, nil
		}
	}
	return 0, lerrors.E("detect baud", lerrors.ErrNotFound, name, fmt.Errorf("no bootloader answered at %v", Bauds))
}

// readN reads up to n bytes, stopping early when a read times out.
func readN(port Port, n int) ([]byte, error) {
	buf := make([]byte, n)
	got := 0
	for got < n {
		m, err := port.Read(buf[got:])
		if err != nil {
			return buf[:got], err
		}
		if m == 0 {
			break
		}
		got += m
	}
	return buf[:got], nil
}
