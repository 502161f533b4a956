// Package matrix — оркестрация пола: открывает шины, крутит цикл отрисовки
// и опроса датчиков, опрашивает кнопки-плиты.
package matrix

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shiwa/ledfloor/internal/board"
	"github.com/shiwa/ledfloor/internal/boardbus"
	"github.com/shiwa/ledfloor/internal/idpool"
	"github.com/shiwa/ledfloor/internal/layout"
	"github.com/shiwa/ledfloor/internal/ratemeter"
)

// Renderer рисует кадр пола. Step двигает состояние на один кадр;
// при отставании Step вызывается без Draw (пропуск кадра).
type Renderer interface {
	Step()
	Draw(f *layout.Frame)
}

// Port — открытый последовательный порт шины
type Port interface {
	io.Reader
	io.Writer
	io.Closer
}

// Options — параметры контроллера
type Options struct {
	Table         *layout.Table
	Timing        boardbus.Timing
	FPS           float64 // 0 — цикл отрисовки не запускается
	SensorFPS     float64 // 0 — опрос датчиков не запускается
	StatsInterval time.Duration
	Renderer      Renderer
	Log           zerolog.Logger
}

type attached struct {
	bus  *boardbus.BoardBus
	port Port
}

// Controller владеет шинами и циклами. Кадр создаётся заново на каждую
// отрисовку: шины читают его асинхронно.
type Controller struct {
	opts          Options
	log           zerolog.Logger
	width, height int

	mu      sync.RWMutex
	buses   []attached
	buttons []*BoardButton
	last    *layout.Frame

	renderMeter *ratemeter.Meter

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New создаёт контроллер. Размер кадра — по крайним позициям таблицы.
func New(opts Options) *Controller {
	if opts.Renderer == nil {
		opts.Renderer = Off{}
	}
	cols, rows := opts.Table.Extent()
	return &Controller{
		opts:        opts,
		log:         opts.Log,
		width:       cols * layout.BoardSize,
		height:      rows * layout.BoardSize,
		renderMeter: ratemeter.New(0),
	}
}

// Attach создаёт шину на уже открытом порту и запускает её горутины.
// Порт закрывает Stop.
func (c *Controller) Attach(name string, port Port, pool *idpool.Pool) *boardbus.BoardBus {
	// окна тишины и список шин меняются вместе под c.mu, иначе SetTiming
	// может пропустить шину, подключаемую одновременно с ним
	c.mu.Lock()
	bus := boardbus.New(port, boardbus.Options{
		Name:   name,
		Table:  c.opts.Table,
		Pool:   pool,
		Timing: c.opts.Timing,
		Log:    c.log,
	})
	c.buses = append(c.buses, attached{bus: bus, port: port})
	c.mu.Unlock()
	bus.Start()

	// шина с аппаратной ошибкой останавливается сама; остальные работают дальше
	go func() {
		<-bus.Done()
		if err := bus.Err(); err != nil {
			c.log.Error().Err(err).Str("bus", name).Msg("bus failed")
		}
	}()
	return bus
}

// Buses — снимок подключённых шин
func (c *Controller) Buses() []*boardbus.BoardBus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*boardbus.BoardBus, 0, len(c.buses))
	for _, a := range c.buses {
		out = append(out, a.bus)
	}
	return out
}

// Boards — все известные платы всех шин, по адресу
func (c *Controller) Boards() []*board.Board {
	var out []*board.Board
	for _, b := range c.Buses() {
		out = append(out, b.Boards()...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address() < out[j].Address() })
	return out
}

// FindBoard ищет плату по адресу на всех шинах
func (c *Controller) FindBoard(addr byte) (*board.Board, bool) {
	for _, b := range c.Buses() {
		if bd, ok := b.Board(addr); ok {
			return bd, true
		}
	}
	return nil, false
}

// Frame — последний отрисованный кадр (nil до первой отрисовки). Не изменять.
func (c *Controller) Frame() *layout.Frame {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// PingAll запускает нумерацию на всех шинах
func (c *Controller) PingAll() {
	for _, b := range c.Buses() {
		b.PingAll()
	}
}

// ResetIDAll сбрасывает адреса на всех шинах
func (c *Controller) ResetIDAll() {
	for _, b := range c.Buses() {
		b.ResetIDAll()
	}
}

// TurnOffAll гасит все плиты
func (c *Controller) TurnOffAll() {
	for _, b := range c.Buses() {
		b.TurnOffBoards()
	}
}

// Drain ждёт записи всех поставленных команд на всех шинах.
// Упавшие шины пропускаются: их ошибка уже залогирована.
func (c *Controller) Drain(ctx context.Context) error {
	for _, b := range c.Buses() {
		if err := b.Drain(ctx); err != nil {
			if ctx.Err() != nil {
				return err
			}
			c.log.Warn().Err(err).Str("bus", b.Name()).Msg("bus not drained")
		}
	}
	return nil
}

// SetTiming раздаёт новые окна тишины всем шинам
func (c *Controller) SetTiming(t boardbus.Timing) {
	c.mu.Lock()
	c.opts.Timing = t
	buses := make([]*boardbus.BoardBus, 0, len(c.buses))
	for _, a := range c.buses {
		buses = append(buses, a.bus)
	}
	c.mu.Unlock()
	for _, b := range buses {
		b.SetTiming(t)
	}
}

// Start запускает циклы отрисовки, опроса датчиков и статистики.
// resetFirst сбрасывает адреса перед первой нумерацией.
func (c *Controller) Start(ctx context.Context, resetFirst bool) {
	ctx, c.cancel = context.WithCancel(ctx)
	if resetFirst {
		c.ResetIDAll()
	}
	c.PingAll()

	if c.opts.FPS > 0 {
		c.wg.Add(1)
		go c.renderLoop(ctx)
	}
	if c.opts.SensorFPS > 0 {
		c.wg.Add(1)
		go c.sensorLoop(ctx)
	}
	if c.opts.StatsInterval > 0 {
		c.wg.Add(1)
		go c.statsLoop(ctx)
	}
	c.log.Debug().Int("buses", len(c.Buses())).Msg("matrix controller started")
}

// Stop останавливает циклы, затем шины (каждая шлёт финальное "всё выключить")
// и закрывает порты. Повторный вызов ничего не делает.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		c.wg.Wait()
		c.mu.RLock()
		buses := append([]attached(nil), c.buses...)
		c.mu.RUnlock()
		for _, a := range buses {
			a.bus.Stop()
		}
		for _, a := range buses {
			a.bus.Wait()
			if err := a.port.Close(); err != nil {
				c.log.Warn().Err(err).Str("bus", a.bus.Name()).Msg("close port")
			}
		}
		c.log.Debug().Msg("matrix controller stopped")
	})
}

func period(fps float64) time.Duration {
	return time.Duration(float64(time.Second) / fps)
}

// renderLoop: кнопки, Step, Draw, обновление шин. Если цикл отстал,
// пропускает кадры (Step без Draw), пока не догонит расписание.
func (c *Controller) renderLoop(ctx context.Context) {
	defer c.wg.Done()
	p := period(c.opts.FPS)
	next := time.Now()
	for {
		c.pollButtons()
		c.renderFrame()

		next = next.Add(p)
		skipped := 0
		for time.Until(next) < 0 {
			c.opts.Renderer.Step()
			next = next.Add(p)
			skipped++
		}
		if skipped > 0 {
			c.log.Debug().Int("skipped", skipped).Msg("render loop behind, frames skipped")
		}
		if !sleepCtx(ctx, time.Until(next)) {
			return
		}
	}
}

func (c *Controller) renderFrame() {
	f := layout.NewFrame(c.width, c.height)
	c.opts.Renderer.Step()
	c.opts.Renderer.Draw(f)
	c.mu.Lock()
	c.last = f
	c.mu.Unlock()
	for _, b := range c.Buses() {
		b.RefreshLEDs(f)
	}
	c.renderMeter.Tick()
}

func (c *Controller) sensorLoop(ctx context.Context) {
	defer c.wg.Done()
	p := period(c.opts.SensorFPS)
	next := time.Now()
	for {
		for _, b := range c.Buses() {
			b.ReadSensors()
		}
		next = next.Add(p)
		if time.Until(next) < 0 {
			next = time.Now()
		}
		if !sleepCtx(ctx, time.Until(next)) {
			return
		}
	}
}

func (c *Controller) statsLoop(ctx context.Context) {
	defer c.wg.Done()
	t := time.NewTicker(c.opts.StatsInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		c.log.Info().Float64("render_fps", c.renderMeter.Rate()).Msg("render stats")
		for _, b := range c.Buses() {
			s := b.Stats()
			c.log.Info().
				Str("bus", b.Name()).
				Int("boards", s.Boards).
				Float64("led_updates", s.LEDUpdates).
				Float64("sensor_polls", s.SensorPolls).
				Float64("sensor_responses", s.SensorResponses).
				Msg("bus stats")
		}
	}
}

// sleepCtx ждёт d или отмены ctx; false — контекст отменён
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
