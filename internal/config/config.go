// Package config — YAML-конфигурация демона пола: шины, раскладка плит,
// цикл отрисовки и окна тишины.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shiwa/ledfloor/internal/layout"
	"github.com/shiwa/ledfloor/internal/protocol"
)

// Config — конфигурация ledfloor
type Config struct {
	Log    LogConfig    `yaml:"log"`
	Buses  []BusConfig  `yaml:"buses"`
	Layout LayoutConfig `yaml:"layout"`
	Render RenderConfig `yaml:"render"`
	Timing TimingConfig `yaml:"timing"`
}

// LogConfig — уровень (debug, info, warn, error) и формат (console, json)
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// BusConfig — одна последовательная шина
type BusConfig struct {
	Device string `yaml:"device"` // /dev/ttyUSB0 или usb:VID:PID[:SERIAL]
	Baud   int    `yaml:"baud"`
	Driver string `yaml:"driver"` // bugst (по умолчанию) или tarm
	// AddressRange — "128-177": адреса таблицы, которые раздаёт эта шина.
	// Пусто — шина берёт из общего пула всех адресов вне явных диапазонов.
	AddressRange string `yaml:"address_range"`
	ReadTimeout  string `yaml:"read_timeout"`
	Lock         *bool  `yaml:"lock"` // flock на устройство; по умолчанию включён
}

// LockEnabled — брать ли эксклюзивную блокировку устройства
func (b BusConfig) LockEnabled() bool {
	return b.Lock == nil || *b.Lock
}

// LayoutConfig — таблица адрес -> позиция. По умолчанию сетка
// columns x rows: address = base_address + columns*row + column.
type LayoutConfig struct {
	Columns     int                `yaml:"columns"`
	Rows        int                `yaml:"rows"`
	BaseAddress int                `yaml:"base_address"`
	BoardSize   int                `yaml:"board_size"`
	Assignments []AssignmentConfig `yaml:"assignments"` // переопределения поверх сетки
}

// AssignmentConfig — явная позиция одного адреса
type AssignmentConfig struct {
	Address int `yaml:"address"`
	Column  int `yaml:"column"`
	Row     int `yaml:"row"`
}

// RenderConfig — цикл отрисовки и опроса датчиков
type RenderConfig struct {
	FPS             float64 `yaml:"fps"`
	SensorFPS       float64 `yaml:"sensor_fps"`
	Pattern         string  `yaml:"pattern"` // off, test
	ResetOnStart    *bool   `yaml:"reset_on_start"` // по умолчанию включён
	StatsInterval   string  `yaml:"stats_interval"`
	ButtonThreshold int     `yaml:"button_threshold"`
}

// ResetEnabled — слать ли широковещательный reset_id перед первым ping
func (r RenderConfig) ResetEnabled() bool {
	return r.ResetOnStart == nil || *r.ResetOnStart
}

// TimingConfig — окна тишины строками time.ParseDuration; пусто или ошибка — значение по умолчанию
type TimingConfig struct {
	PingSlot            string `yaml:"ping_slot"`
	PingOverhead        string `yaml:"ping_overhead"`
	AssignSettle        string `yaml:"assign_settle"`
	LEDTransferPerBoard string `yaml:"led_transfer_per_board"`
	LEDRender           string `yaml:"led_render"`
	LEDRenderWait       string `yaml:"led_render_wait"`
	LEDPadding          string `yaml:"led_padding"`
	SensorLeadIn        string `yaml:"sensor_lead_in"`
	SensorSlot          string `yaml:"sensor_slot"`
	SensorOverhead      string `yaml:"sensor_overhead"`
	ADCSettle           string `yaml:"adc_settle"`
	SensorPadding       string `yaml:"sensor_padding"`
	ShutdownSettle      string `yaml:"shutdown_settle"`
}

// Default возвращает конфиг по умолчанию: одна шина, сетка 10x10 с адреса 128
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "console"},
		Buses: []BusConfig{
			{Device: "/dev/ttyUSB0", Baud: 500000, Driver: "bugst", ReadTimeout: "100ms"},
		},
		Layout: LayoutConfig{
			Columns:     10,
			Rows:        10,
			BaseAddress: protocol.ResponseAddressMin,
			BoardSize:   layout.BoardSize,
		},
		Render: RenderConfig{
			FPS:             30,
			SensorFPS:       30,
			Pattern:         "test",
			StatsInterval:   "10s",
			ButtonThreshold: 100,
		},
	}
}

// Load читает конфиг из YAML
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse разбирает YAML, подставляет значения по умолчанию и проверяет результат
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&c)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &c, nil
}

func applyDefaults(c *Config) {
	d := Default()
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if len(c.Buses) == 0 {
		c.Buses = d.Buses
	}
	for i := range c.Buses {
		b := &c.Buses[i]
		if b.Baud == 0 {
			b.Baud = d.Buses[0].Baud
		}
		if b.Driver == "" {
			b.Driver = d.Buses[0].Driver
		}
		if b.ReadTimeout == "" {
			b.ReadTimeout = d.Buses[0].ReadTimeout
		}
	}
	if c.Layout.Columns == 0 && c.Layout.Rows == 0 && len(c.Layout.Assignments) == 0 {
		c.Layout.Columns = d.Layout.Columns
		c.Layout.Rows = d.Layout.Rows
	}
	if c.Layout.BaseAddress == 0 {
		c.Layout.BaseAddress = d.Layout.BaseAddress
	}
	if c.Layout.BoardSize == 0 {
		c.Layout.BoardSize = d.Layout.BoardSize
	}
	if c.Render.FPS == 0 {
		c.Render.FPS = d.Render.FPS
	}
	if c.Render.SensorFPS == 0 {
		c.Render.SensorFPS = d.Render.SensorFPS
	}
	if c.Render.Pattern == "" {
		c.Render.Pattern = d.Render.Pattern
	}
	if c.Render.StatsInterval == "" {
		c.Render.StatsInterval = d.Render.StatsInterval
	}
	if c.Render.ButtonThreshold == 0 {
		c.Render.ButtonThreshold = d.Render.ButtonThreshold
	}
}

// Validate проверяет то, что нельзя исправить значением по умолчанию
func (c *Config) Validate() error {
	var errs []error
	if c.Layout.BoardSize != layout.BoardSize {
		errs = append(errs, fmt.Errorf("layout.board_size %d: boards are %dx%d", c.Layout.BoardSize, layout.BoardSize, layout.BoardSize))
	}
	if c.Layout.Columns < 0 || c.Layout.Rows < 0 {
		errs = append(errs, fmt.Errorf("layout: negative grid %dx%d", c.Layout.Columns, c.Layout.Rows))
	}
	if _, err := c.Layout.Table(); err != nil {
		errs = append(errs, err)
	}
	for i, b := range c.Buses {
		if b.Device == "" {
			errs = append(errs, fmt.Errorf("buses[%d]: empty device", i))
		}
		if b.AddressRange != "" {
			if _, _, err := ParseAddressRange(b.AddressRange); err != nil {
				errs = append(errs, fmt.Errorf("buses[%d]: %w", i, err))
			}
		}
	}
	if c.Render.FPS < 0 || c.Render.SensorFPS < 0 {
		errs = append(errs, errors.New("render: negative fps"))
	}
	switch c.Render.Pattern {
	case "off", "test":
	default:
		errs = append(errs, fmt.Errorf("render.pattern %q: want off or test", c.Render.Pattern))
	}
	return errors.Join(errs...)
}

// Table строит таблицу назначений: сетка плюс переопределения.
// Адреса вне [128, 254] отвергаются: плата с таким адресом не может ответить.
func (l LayoutConfig) Table() (*layout.Table, error) {
	byAddr := make(map[int]layout.Position)
	var order []int
	put := func(addr int, pos layout.Position) {
		if _, ok := byAddr[addr]; !ok {
			order = append(order, addr)
		}
		byAddr[addr] = pos
	}
	if l.Columns*l.Rows > 0 {
		last := l.BaseAddress + l.Columns*l.Rows - 1
		if l.BaseAddress < protocol.ResponseAddressMin || last > protocol.ResponseAddressMax {
			return nil, fmt.Errorf("layout: grid addresses %d-%d outside %d-%d",
				l.BaseAddress, last, protocol.ResponseAddressMin, protocol.ResponseAddressMax)
		}
		for _, a := range layout.Grid(l.Columns, l.Rows, byte(l.BaseAddress)) {
			put(int(a.Address), a.Position)
		}
	}
	for _, a := range l.Assignments {
		if a.Address < protocol.ResponseAddressMin || a.Address > protocol.ResponseAddressMax {
			return nil, fmt.Errorf("layout: assignment address %d outside %d-%d",
				a.Address, protocol.ResponseAddressMin, protocol.ResponseAddressMax)
		}
		if a.Column < 0 || a.Row < 0 {
			return nil, fmt.Errorf("layout: assignment %d: negative position", a.Address)
		}
		put(a.Address, layout.Position{Column: a.Column, Row: a.Row})
	}
	entries := make([]layout.Assignment, 0, len(order))
	for _, addr := range order {
		entries = append(entries, layout.Assignment{Address: byte(addr), Position: byAddr[addr]})
	}
	t, err := layout.NewTable(entries)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	return t, nil
}

// ParseAddressRange разбирает "lo-hi" (включительно) в пределах [128, 254]
func ParseAddressRange(s string) (lo, hi byte, err error) {
	a, b, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return 0, 0, fmt.Errorf("address_range %q: want lo-hi", s)
	}
	l, err1 := strconv.Atoi(strings.TrimSpace(a))
	h, err2 := strconv.Atoi(strings.TrimSpace(b))
	if err1 != nil || err2 != nil {
		return 0, 0, fmt.Errorf("address_range %q: not numbers", s)
	}
	if l > h || l < protocol.ResponseAddressMin || h > protocol.ResponseAddressMax {
		return 0, 0, fmt.Errorf("address_range %q: want %d <= lo <= hi <= %d", s,
			protocol.ResponseAddressMin, protocol.ResponseAddressMax)
	}
	return byte(l), byte(h), nil
}

// ParseDuration парсит строку длительности; пусто или ошибка — def
func ParseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}
