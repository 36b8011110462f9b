//go:build linux

package frontend

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"sigscope/internal/logging"
	"sigscope/internal/snapshot"
)

// ErrBaudRate reports an unsupported serial baud rate.
var ErrBaudRate = errors.New("frontend: unsupported baud rate")

var baudRates = map[int]uint32{
	9600:    unix.B9600,
	19200:   unix.B19200,
	38400:   unix.B38400,
	57600:   unix.B57600,
	115200:  unix.B115200,
	230400:  unix.B230400,
	460800:  unix.B460800,
	921600:  unix.B921600,
	1000000: unix.B1000000,
	2000000: unix.B2000000,
	3000000: unix.B3000000,
}

// SerialReader fetches captures from the byte-serial transport over a
// POSIX serial port. Words arrive least-significant byte first on the
// wire; ReadRaw returns them normalized to the canonical big-endian
// layout.
type SerialReader struct {
	file   *os.File
	params snapshot.Parameters
}

// OpenSerial opens device in raw 8N1 mode at the given baud rate. Reads
// return whatever has arrived after two seconds of line silence.
func OpenSerial(device string, baud int, params snapshot.Parameters) (*SerialReader, error) {
	code, ok := baudRates[baud]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrBaudRate, baud)
	}

	file, err := os.OpenFile(device, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("open serial port: %w", err)
	}

	fd := int(file.Fd())
	tio, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("get termios: %w", err)
	}

	tio.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	tio.Oflag &^= unix.OPOST
	tio.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	tio.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CBAUD
	tio.Cflag |= unix.CS8 | unix.CLOCAL | unix.CREAD | code
	tio.Ispeed = code
	tio.Ospeed = code

	// Blocking reads with an inter-byte timeout instead of a byte count.
	tio.Cc[unix.VMIN] = 0
	tio.Cc[unix.VTIME] = 20

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, tio); err != nil {
		file.Close()
		return nil, fmt.Errorf("set termios: %w", err)
	}

	// Drop anything buffered from before this session.
	if err := unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIFLUSH); err != nil {
		file.Close()
		return nil, fmt.Errorf("flush input: %w", err)
	}

	logging.Debug("opened serial port", "device", device, "baud", baud)
	return &SerialReader{file: file, params: params}, nil
}

// ReadRaw reads one capture's worth of bytes from the port.
//
// It requests twice the capture size: some adapters under-report how
// many bytes are pending, and over-requesting plus the read timeout
// still yields a complete, correctly ordered capture. A timeout is
// treated as success; a genuinely short capture is caught at parse time.
func (r *SerialReader) ReadRaw() ([]byte, error) {
	need := r.params.RawSize()
	buf := make([]byte, 2*need)

	total := 0
	for total < len(buf) {
		n, err := r.file.Read(buf[total:])
		if err != nil {
			if total >= need {
				break
			}
			return nil, fmt.Errorf("read serial port: %w", err)
		}
		if n == 0 {
			// VTIME expired with the line quiet.
			break
		}
		total += n
	}

	raw := buf[:total]
	NormalizeWireOrder(raw, r.params.BytesPerSample)
	return raw, nil
}

// Close releases the port.
func (r *SerialReader) Close() error {
	return r.file.Close()
}
