// Package floor запускает пол целиком: шины из конфига, контроллер отрисовки
// и горячую перезагрузку окон тишины. Используется из cmd/ledfloor.
package floor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/shiwa/ledfloor/internal/board"
	"github.com/shiwa/ledfloor/internal/boardbus"
	"github.com/shiwa/ledfloor/internal/config"
	"github.com/shiwa/ledfloor/internal/idpool"
	"github.com/shiwa/ledfloor/internal/layout"
	"github.com/shiwa/ledfloor/internal/logger"
	"github.com/shiwa/ledfloor/internal/matrix"
	"github.com/shiwa/ledfloor/internal/serialport"
)

// ErrNoBuses — ни одна шина из конфига не открылась
var ErrNoBuses = errors.New("no serial bus could be opened")

// openPort подменяется в тестах
var openPort = func(c serialport.Config) (matrix.Port, error) {
	return serialport.Open(c)
}

// RunDaemon открывает шины, запускает отрисовку и опрос датчиков до отмены ctx.
// configPath, если задан, отслеживается: новые окна тишины применяются на лету.
func RunDaemon(ctx context.Context, cfg *config.Config, configPath string, quiet bool) error {
	logger.Quiet = quiet
	log := logger.For("floor")

	c, err := open(cfg, log, true)
	if err != nil {
		return err
	}
	defer c.Stop()

	r, err := c.NewRenderer(cfg.Render.Pattern, cfg.Render.ButtonThreshold)
	if err != nil {
		return err
	}
	c.SetRenderer(r)
	c.Start(ctx, cfg.Render.ResetEnabled())

	if configPath != "" {
		go func() {
			err := config.Watch(ctx, configPath, log, func(n *config.Config) {
				c.SetTiming(TimingFromConfig(n.Timing))
			})
			if err != nil {
				log.Warn().Err(err).Msg("config hot reload disabled")
			}
		}()
	}

	log.Info().
		Int("buses", len(c.Buses())).
		Float64("fps", cfg.Render.FPS).
		Float64("sensor_fps", cfg.Render.SensorFPS).
		Str("pattern", cfg.Render.Pattern).
		Msg("floor running")
	<-ctx.Done()
	return nil
}

// Reset сбрасывает адреса на всех шинах и заново нумерует платы.
// Возвращает платы, ответившие за wait.
func Reset(ctx context.Context, cfg *config.Config, wait time.Duration) ([]*board.Board, error) {
	log := logger.For("floor")
	c, err := open(cfg, log, false)
	if err != nil {
		return nil, err
	}
	defer c.Stop()
	c.ResetIDAll()
	c.PingAll()
	if err := c.Drain(ctx); err != nil {
		return nil, err
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
	}
	return c.Boards(), nil
}

// TurnOff гасит все плиты на всех шинах
func TurnOff(ctx context.Context, cfg *config.Config) error {
	log := logger.For("floor")
	c, err := open(cfg, log, false)
	if err != nil {
		return err
	}
	defer c.Stop()
	c.TurnOffAll()
	return c.Drain(ctx)
}

// open строит таблицу и пулы, открывает шины. Шина, которая не открылась,
// логируется и пропускается.
func open(cfg *config.Config, log zerolog.Logger, loops bool) (*matrix.Controller, error) {
	table, err := cfg.Layout.Table()
	if err != nil {
		return nil, err
	}
	pools, err := BuildPools(cfg.Buses, table)
	if err != nil {
		return nil, err
	}
	opts := matrix.Options{
		Table:  table,
		Timing: TimingFromConfig(cfg.Timing),
		Log:    logger.For("matrix"),
	}
	if loops {
		opts.FPS = cfg.Render.FPS
		opts.SensorFPS = cfg.Render.SensorFPS
		opts.StatsInterval = config.ParseDuration(cfg.Render.StatsInterval, 10*time.Second)
	}
	c := matrix.New(opts)
	for i, b := range cfg.Buses {
		pc := serialport.Config{
			Device:      b.Device,
			Baud:        b.Baud,
			Driver:      b.Driver,
			ReadTimeout: config.ParseDuration(b.ReadTimeout, serialport.DefaultReadTimeout),
			Lock:        b.LockEnabled(),
		}
		port, err := openPort(pc)
		if err != nil {
			log.Error().Err(err).Str("device", b.Device).Msg("unable to open serial port, bus skipped")
			continue
		}
		c.Attach(b.Device, port, pools[i])
		log.Info().Str("device", b.Device).Int("addresses", pools[i].Len()).Msg("bus opened")
	}
	if len(c.Buses()) == 0 {
		return nil, ErrNoBuses
	}
	return c, nil
}

// BuildPools раздаёт адреса таблицы шинам. Шина с address_range получает
// свой пул; все шины без диапазона делят один пул из оставшихся адресов.
func BuildPools(buses []config.BusConfig, table *layout.Table) ([]*idpool.Pool, error) {
	pools := make([]*idpool.Pool, len(buses))
	claimed := make(map[byte]int)
	for i, b := range buses {
		if b.AddressRange == "" {
			continue
		}
		lo, hi, err := config.ParseAddressRange(b.AddressRange)
		if err != nil {
			return nil, fmt.Errorf("buses[%d]: %w", i, err)
		}
		addrs := table.Within(lo, hi)
		for _, a := range addrs {
			if j, dup := claimed[a]; dup {
				return nil, fmt.Errorf("buses[%d]: address %d already belongs to buses[%d]", i, a, j)
			}
			claimed[a] = i
		}
		if pools[i], err = idpool.New(addrs...); err != nil {
			return nil, fmt.Errorf("buses[%d]: %w", i, err)
		}
	}
	var rest []byte
	for _, a := range table.Addresses() {
		if _, ok := claimed[a]; !ok {
			rest = append(rest, a)
		}
	}
	var shared *idpool.Pool
	for i := range buses {
		if pools[i] != nil {
			continue
		}
		if shared == nil {
			var err error
			if shared, err = idpool.New(rest...); err != nil {
				return nil, err
			}
		}
		pools[i] = shared
	}
	return pools, nil
}

// TimingFromConfig переводит строки конфига в окна тишины; пустые и
// ошибочные значения берутся из boardbus.DefaultTiming.
func TimingFromConfig(c config.TimingConfig) boardbus.Timing {
	d := boardbus.DefaultTiming()
	return boardbus.Timing{
		PingSlot:            config.ParseDuration(c.PingSlot, d.PingSlot),
		PingOverhead:        config.ParseDuration(c.PingOverhead, d.PingOverhead),
		AssignSettle:        config.ParseDuration(c.AssignSettle, d.AssignSettle),
		LEDTransferPerBoard: config.ParseDuration(c.LEDTransferPerBoard, d.LEDTransferPerBoard),
		LEDRender:           config.ParseDuration(c.LEDRender, d.LEDRender),
		LEDRenderWait:       config.ParseDuration(c.LEDRenderWait, d.LEDRenderWait),
		LEDPadding:          config.ParseDuration(c.LEDPadding, d.LEDPadding),
		SensorLeadIn:        config.ParseDuration(c.SensorLeadIn, d.SensorLeadIn),
		SensorSlot:          config.ParseDuration(c.SensorSlot, d.SensorSlot),
		SensorOverhead:      config.ParseDuration(c.SensorOverhead, d.SensorOverhead),
		ADCSettle:           config.ParseDuration(c.ADCSettle, d.ADCSettle),
		SensorPadding:       config.ParseDuration(c.SensorPadding, d.SensorPadding),
		ShutdownSettle:      config.ParseDuration(c.ShutdownSettle, d.ShutdownSettle),
	}
}
