// Package boardbus — одна последовательная шина с многими плитами.
//
// На шине нет арбитража: мастер ведёт обмен и держит окна тишины. Каждая
// шина крутит три горутины: приём (байты -> записи), отправка (очередь
// команд с учётом тишины) и обработка (записи -> состояние плат, нумерация).
package boardbus

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/shiwa/ledfloor/internal/board"
	"github.com/shiwa/ledfloor/internal/idpool"
	"github.com/shiwa/ledfloor/internal/layout"
	"github.com/shiwa/ledfloor/internal/ratemeter"
)

// Port — последовательный канал. Read должен возвращаться по таймауту
// (0, nil), чтобы горутина приёма замечала остановку.
type Port interface {
	io.Reader
	io.Writer
}

// Options — параметры шины
type Options struct {
	Name   string        // для логов, обычно путь устройства
	Table  *layout.Table // общая таблица адрес -> позиция
	Pool   *idpool.Pool  // свободные адреса этой шины (может быть общим)
	Timing Timing
	Log    zerolog.Logger
}

// Stats — частоты циклов шины за последнюю секунду
type Stats struct {
	LEDUpdates      float64
	SensorPolls     float64
	SensorResponses float64
	Boards          int
}

// BoardBus — шина. Публичные методы только ставят команды в очередь и не блокируют.
type BoardBus struct {
	name  string
	port  Port
	table *layout.Table
	pool  *idpool.Pool
	log   zerolog.Logger

	timing  atomic.Pointer[Timing]
	silence Silence

	commands *fifo[op]
	events   *fifo[event]

	refreshPending atomic.Bool
	pollPending    atomic.Bool
	frame          atomic.Pointer[layout.Frame]
	broadcast      *board.Board

	// платы пишет только горутина обработки; остальные читают под RLock
	mu      sync.RWMutex
	boards  map[byte]*board.Board
	nextSeq atomic.Int32

	// resetGen растёт при каждом записанном широковещательном reset_id;
	// offered и joined помнят поколение, в котором адрес был предложен.
	// Обе карты — только горутина обработки.
	resetGen atomic.Int64
	offered  map[byte]int64
	joined   map[byte]int64

	ledMeter      *ratemeter.Meter
	pollMeter     *ratemeter.Meter
	responseMeter *ratemeter.Meter

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	done     chan struct{}
	started  atomic.Bool

	errMu sync.Mutex
	err   error
}

var errStopped = errors.New("bus stopped")

// New создаёт шину; горутины запускает Start.
func New(port Port, opts Options) *BoardBus {
	b := &BoardBus{
		name:          opts.Name,
		port:          port,
		table:         opts.Table,
		pool:          opts.Pool,
		log:           opts.Log.With().Str("bus", opts.Name).Logger(),
		commands:      newFIFO[op](),
		events:        newFIFO[event](),
		broadcast:     board.Broadcast(),
		boards:        make(map[byte]*board.Board),
		offered:       make(map[byte]int64),
		joined:        make(map[byte]int64),
		ledMeter:      ratemeter.New(0),
		pollMeter:     ratemeter.New(0),
		responseMeter: ratemeter.New(0),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	t := opts.Timing
	b.timing.Store(&t)
	return b
}

// Name — имя шины
func (b *BoardBus) Name() string { return b.name }

// Start запускает горутины приёма, отправки и обработки. Повторный вызов ничего не делает.
func (b *BoardBus) Start() {
	if !b.started.CompareAndSwap(false, true) {
		return
	}
	b.wg.Add(3)
	go b.runReceive()
	go b.runSend()
	go b.runProcess()
	go func() {
		b.wg.Wait()
		close(b.done)
	}()
	b.log.Debug().Msg("bus started")
}

// Stop сигналит всем горутинам завершиться. Команды, ещё стоящие в очереди,
// отбрасываются; горутина отправки шлёт последний кадр "всё выключить".
func (b *BoardBus) Stop() {
	b.stopOnce.Do(func() { close(b.stop) })
}

// Wait ждёт завершения всех горутин. Порт после этого закрывает вызывающий.
func (b *BoardBus) Wait() {
	if !b.started.Load() {
		return
	}
	<-b.done
}

// Done закрывается, когда все горутины шины завершились
func (b *BoardBus) Done() <-chan struct{} { return b.done }

// Err — ошибка ввода-вывода, остановившая шину (nil при штатной остановке)
func (b *BoardBus) Err() error {
	b.errMu.Lock()
	defer b.errMu.Unlock()
	return b.err
}

// fail останавливает шину из-за аппаратной ошибки; другие шины не затрагиваются.
func (b *BoardBus) fail(err error) {
	select {
	case <-b.stop:
		return
	default:
	}
	b.errMu.Lock()
	if b.err == nil {
		b.err = err
	}
	b.errMu.Unlock()
	b.log.Error().Err(err).Msg("serial I/O failed, stopping bus")
	b.Stop()
}

func (b *BoardBus) stopping() bool {
	select {
	case <-b.stop:
		return true
	default:
		return false
	}
}

// SetTiming заменяет окна тишины (горячая перезагрузка конфига)
func (b *BoardBus) SetTiming(t Timing) {
	b.timing.Store(&t)
}

// Timing — текущие окна тишины
func (b *BoardBus) Timing() Timing {
	return *b.timing.Load()
}

// SilenceUntil — момент окончания текущего окна тишины
func (b *BoardBus) SilenceUntil() time.Time {
	return b.silence.Until()
}

// RefreshLEDs запоминает кадр и ставит обновление в очередь, если оно ещё не стоит там.
// Кадр после вызова не изменяют.
func (b *BoardBus) RefreshLEDs(f *layout.Frame) {
	if f != nil {
		b.frame.Store(f)
	}
	if b.refreshPending.CompareAndSwap(false, true) {
		b.commands.push(opRefreshLEDs{})
	}
}

// ReadSensors ставит опрос датчиков в очередь, если он ещё не стоит там.
// Ответы опроса цикла N могут быть видны только в цикле N+1 (буфер моста).
func (b *BoardBus) ReadSensors() {
	if b.pollPending.CompareAndSwap(false, true) {
		b.commands.push(opReadSensors{})
	}
}

// PingAll — широковещательный ping (нумерация плат)
func (b *BoardBus) PingAll() { b.commands.push(opPing{to: b.broadcast.Address()}) }

// Ping — ping одной платы
func (b *BoardBus) Ping(addr byte) { b.commands.push(opPing{to: addr}) }

// ResetIDAll сбрасывает адреса всех плат шины; локальный набор плат очищается
func (b *BoardBus) ResetIDAll() { b.commands.push(opReset{to: b.broadcast.Address()}) }

// ResetID сбрасывает адрес одной платы
func (b *BoardBus) ResetID(addr byte) { b.commands.push(opReset{to: addr}) }

// TurnOffBoards гасит все светодиоды на шине
func (b *BoardBus) TurnOffBoards() { b.commands.push(opTurnOff{}) }

// RequestInfo запрашивает информацию у платы (или у всех по broadcast)
func (b *BoardBus) RequestInfo(addr byte) { b.commands.push(opRequestInfo{to: addr}) }

// Drain ждёт, пока будут записаны все команды, поставленные до вызова.
// Ответы плат Drain не ждёт.
func (b *BoardBus) Drain(ctx context.Context) error {
	done := make(chan struct{})
	b.commands.push(opBarrier{done: done})
	select {
	case <-done:
		return nil
	case <-b.done:
		if err := b.Err(); err != nil {
			return err
		}
		return errStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Boards — снимок известных плат в порядке номеров последовательности
func (b *BoardBus) Boards() []*board.Board {
	b.mu.RLock()
	out := make([]*board.Board, 0, len(b.boards))
	for _, bd := range b.boards {
		out = append(out, bd)
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber() < out[j].SequenceNumber() })
	return out
}

// Board ищет плату по адресу. Только что пронумерованная плата может
// появиться с задержкой: это нормально.
func (b *BoardBus) Board(addr byte) (*board.Board, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bd, ok := b.boards[addr]
	return bd, ok
}

// Stats — частоты циклов
func (b *BoardBus) Stats() Stats {
	b.mu.RLock()
	n := len(b.boards)
	b.mu.RUnlock()
	return Stats{
		LEDUpdates:      b.ledMeter.Rate(),
		SensorPolls:     b.pollMeter.Rate(),
		SensorResponses: b.responseMeter.Rate(),
		Boards:          n,
	}
}
