// Package serialport открывает последовательный мост шины плиток.
// Два драйвера: go.bug.st/serial (по умолчанию) и tarm/serial.
package serialport

import (
	"errors"
	"fmt"
	"io"
	"time"

	tarm "github.com/tarm/serial"
	"go.bug.st/serial"
)

const (
	DriverBugst = "bugst"
	DriverTarm  = "tarm"

	DefaultBaud        = 500000
	DefaultReadTimeout = 100 * time.Millisecond
)

var (
	ErrUnknownDriver = errors.New("unknown serial driver")
	ErrLocked        = errors.New("serial device is locked by another process")
)

// Config — параметры порта одной шины
type Config struct {
	Device      string // путь или usb:VID:PID[:SERIAL]
	Baud        int
	Driver      string
	ReadTimeout time.Duration
	Lock        bool // эксклюзивная блокировка устройства (flock)
}

// Port — открытый порт. Read возвращает (0, nil) по таймауту.
type Port struct {
	name string
	rw   io.ReadWriteCloser
	lock io.Closer
	// tarm/serial отдаёт io.EOF, когда за таймаут ничего не пришло
	eofIsTimeout bool
}

// Open разрешает имя устройства, при необходимости блокирует его и открывает драйвером.
func Open(cfg Config) (*Port, error) {
	if cfg.Driver == "" {
		cfg.Driver = DriverBugst
	}
	if cfg.Driver != DriverBugst && cfg.Driver != DriverTarm {
		return nil, fmt.Errorf("%q: %w", cfg.Driver, ErrUnknownDriver)
	}
	if cfg.Baud <= 0 {
		cfg.Baud = DefaultBaud
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	device, err := Resolve(cfg.Device)
	if err != nil {
		return nil, err
	}

	p := &Port{name: device}
	if cfg.Lock {
		if p.lock, err = lockDevice(device); err != nil {
			return nil, fmt.Errorf("lock %s: %w", device, err)
		}
	}

	switch cfg.Driver {
	case DriverTarm:
		c := &tarm.Config{Name: device, Baud: cfg.Baud, ReadTimeout: cfg.ReadTimeout}
		sp, err := tarm.OpenPort(c)
		if err != nil {
			p.unlock()
			return nil, fmt.Errorf("serial open %s: %w", device, err)
		}
		p.rw = sp
		p.eofIsTimeout = true
	default:
		sp, err := serial.Open(device, &serial.Mode{BaudRate: cfg.Baud})
		if err != nil {
			p.unlock()
			return nil, fmt.Errorf("serial open %s: %w", device, err)
		}
		if err := sp.SetReadTimeout(cfg.ReadTimeout); err != nil {
			sp.Close()
			p.unlock()
			return nil, fmt.Errorf("serial %s: set read timeout: %w", device, err)
		}
		p.rw = sp
	}
	return p, nil
}

// Name — путь открытого устройства
func (p *Port) Name() string { return p.name }

func (p *Port) Read(b []byte) (int, error) {
	n, err := p.rw.Read(b)
	if p.eofIsTimeout && n == 0 && errors.Is(err, io.EOF) {
		return 0, nil
	}
	return n, err
}

func (p *Port) Write(b []byte) (int, error) {
	return p.rw.Write(b)
}

// Close закрывает порт и снимает блокировку
func (p *Port) Close() error {
	if p.rw == nil {
		return nil
	}
	err := p.rw.Close()
	p.rw = nil
	p.unlock()
	return err
}

func (p *Port) unlock() {
	if p.lock != nil {
		p.lock.Close()
		p.lock = nil
	}
}
