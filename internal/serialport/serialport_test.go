package serialport

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lerrors "github.com/chazuruo/ledupdater/internal/errors"
)

// fakePort answers sync requests with reply when the port was opened at
// answerBaud.
type fakePort struct {
	baud       int
	answerBaud int
	reply      []byte
	pending    []byte
	writes     int
	dtr        []bool
	closed     bool
}

func (f *fakePort) Read(p []byte) (int, error) {
	n := copy(p, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

func (f *fakePort) Write(p []byte) (int, error) {
	f.writes++
	if f.baud == f.answerBaud {
		f.pending = append(f.pending, f.reply...)
	}
	return len(p), nil
}

func (f *fakePort) ResetInputBuffer() error            { f.pending = nil; return nil }
func (f *fakePort) SetDTR(v bool) error                { f.dtr = append(f.dtr, v); return nil }
func (f *fakePort) SetRTS(bool) error                  { return nil }
func (f *fakePort) SetReadTimeout(time.Duration) error { return nil }
func (f *fakePort) Close() error                       { f.closed = true; return nil }

func newTestProber(answerBaud int, reply []byte, opened *[]*fakePort) *Prober {
	return &Prober{
		list: func() ([]string, error) { return []string{"/dev/ttyUSB1", "/dev/ttyUSB0"}, nil },
		open: func(name string, baud int) (Port, error) {
			fp := &fakePort{baud: baud, answerBaud: answerBaud, reply: reply}
			*opened = append(*opened, fp)
			return fp, nil
		},
		sleep: func(time.Duration) {},
	}
}

func TestList_Sorted(t *testing.T) {
	var opened []*fakePort
	ports, err := newTestProber(0, nil, &opened).List()
	require.NoError(t, err)
	assert.Equal(t, []string{"/dev/ttyUSB0", "/dev/ttyUSB1"}, ports)
}

func TestList_Error(t *testing.T) {
	p := &Prober{list: func() ([]string, error) { return nil, errors.New("no access") }}
	_, err := p.List()
	assert.True(t, lerrors.IsIO(err))
}

func TestProbeBootloader_InSync(t *testing.T) {
	var opened []*fakePort
	p := newTestProber(115200, []byte{0x14, 0x10}, &opened)

	ok, err := p.ProbeBootloader("/dev/ttyUSB0", 115200)
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, opened, 1)
	assert.True(t, opened[0].closed)
	assert.Equal(t, []bool{false, true}, opened[0].dtr)
	assert.Equal(t, 1, opened[0].writes)
}

func TestProbeBootloader_NoAnswer(t *testing.T) {
	var opened []*fakePort
	p := newTestProber(57600, []byte{0x14, 0x10}, &opened)

	ok, err := p.ProbeBootloader("/dev/ttyUSB0", 115200)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, syncTries, opened[0].writes)
}

func TestProbeBootloader_WrongReply(t *testing.T) {
	var opened []*fakePort
	p := newTestProber(115200, []byte{0x14, 0x12}, &opened)

	ok, err := p.ProbeBootloader("/dev/ttyUSB0", 115200)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProbeBootloader_OpenError(t *testing.T) {
	p := &Prober{
		open:  func(string, int) (Port, error) { return nil, errors.New("busy") },
		sleep: func(time.Duration) {},
	}
	_, err := p.ProbeBootloader("COM3", 115200)
	require.Error(t, err)
	assert.True(t, lerrors.IsIO(err))
	assert.Contains(t, err.Error(), "COM3")
}

func TestDetectBaud(t *testing.T) {
	var opened []*fakePort
	p := newTestProber(57600, []byte{0x14, 0x10}, &opened)

	baud, err := p.DetectBaud("/dev/ttyUSB0")
	require.NoError(t, err)
	assert.Equal(t, 57600, baud)
	require.Len(t, opened, 2)
	assert.Equal(t, 115200, opened[0].baud)
}

func TestDetectBaud_NotFound(t *testing.T) {
	var opened []*fakePort
	p := newTestProber(9600, []byte{0x14, 0x10}, &opened)

	_, err := p.DetectBaud("/dev/ttyUSB0")
	assert.True(t, lerrors.IsNotFound(err))
}
