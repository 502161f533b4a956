package boardbus

import (
	"fmt"
	"time"

	"github.com/shiwa/ledfloor/internal/board"
	"github.com/shiwa/ledfloor/internal/layout"
	"github.com/shiwa/ledfloor/internal/protocol"
)

// op — команда очереди отправки. Реализации перечислены ниже; execute
// обрабатывает их все.
type op interface{ isOp() }

type (
	opRefreshLEDs struct{}
	opReadSensors struct{}
	opTurnOff     struct{}
	opReset       struct{ to byte }
	opPing        struct{ to byte }
	opOfferSeq    struct{ b *board.Board }
	opRequestInfo struct{ to byte }
	opBarrier     struct{ done chan struct{} }
)

// opAssignID несёт поколение сброса, в котором адрес взят из пула.
type opAssignID struct {
	id  byte
	gen int64
}

func (opRefreshLEDs) isOp() {}
func (opReadSensors) isOp() {}
func (opTurnOff) isOp()     {}
func (opReset) isOp()       {}
func (opPing) isOp()        {}
func (opAssignID) isOp()    {}
func (opOfferSeq) isOp()    {}
func (opRequestInfo) isOp() {}
func (opBarrier) isOp()     {}

// runSend — горутина отправки: каждая команда ждёт конца тишины, пишет
// кадр(ы) и продлевает тишину на время ответа плат.
func (b *BoardBus) runSend() {
	defer b.wg.Done()
	for {
		o, ok := b.commands.pop(b.stop)
		if !ok || b.stopping() {
			break
		}
		if err := b.execute(o); err != nil {
			b.fail(err)
			break
		}
	}
	b.shutdown()
}

// shutdown гасит плиты последним кадром. Ошибка записи здесь только логируется.
func (b *BoardBus) shutdown() {
	if b.Err() != nil {
		return
	}
	t := b.Timing()
	b.silence.Extend(time.Now().Add(t.ShutdownSettle))
	b.silence.Wait()
	if err := b.write(b.allOff()); err != nil {
		b.log.Warn().Err(err).Msg("final turn-off failed")
		return
	}
	b.log.Debug().Msg("boards turned off")
}

func (b *BoardBus) allOff() protocol.Command {
	return b.broadcast.ForceLEDCommand(make([]uint8, layout.BoardSize*layout.BoardSize*3))
}

func (b *BoardBus) write(c protocol.Command) error {
	if _, err := b.port.Write(protocol.Encode(c)); err != nil {
		return fmt.Errorf("write %s to %d: %w", c.Code(), c.Address(), err)
	}
	return nil
}

// writeAt ждёт конца тишины, пишет команду и продлевает тишину на margin
func (b *BoardBus) writeAt(c protocol.Command, margin time.Duration) error {
	b.silence.Wait()
	if err := b.write(c); err != nil {
		return err
	}
	b.silence.Extend(time.Now().Add(margin))
	return nil
}

func (b *BoardBus) execute(o op) error {
	t := b.Timing()
	switch o := o.(type) {
	case opRefreshLEDs:
		return b.refreshLEDs(t)
	case opReadSensors:
		return b.readSensors(t)
	case opTurnOff:
		if err := b.writeAt(b.allOff(), t.LEDMargin(len(b.Boards()))); err != nil {
			return err
		}
		for _, bd := range b.Boards() {
			bd.ForgetDisplayed()
		}
		return nil
	case opReset:
		b.silence.Wait()
		if err := b.write(protocol.ResetID{To: o.to}); err != nil {
			return err
		}
		gen := b.resetGen.Load()
		if o.to == protocol.BroadcastAddress {
			gen = b.resetGen.Add(1)
		}
		b.events.push(resetEvent{addr: o.to, gen: gen})
		return nil
	case opPing:
		return b.writeAt(protocol.Ping{To: o.to}, b.pingMargin(o.to, t))
	case opAssignID:
		// предложение из поколения до reset_id: адрес вернёт в пул handleReset
		if o.gen != b.resetGen.Load() {
			b.log.Debug().Uint8("id", o.id).Msg("stale address offer dropped")
			return nil
		}
		// offer_id, пауза, затем ping: плата отвечает pong уже с новым адресом
		if err := b.writeAt(board.OfferID(o.id), t.AssignSettle); err != nil {
			return err
		}
		return b.writeAt(b.broadcast.Ping(), t.PingMargin(b.table.Len()))
	case opOfferSeq:
		cmd, err := o.b.OfferSequenceNumber()
		if err != nil {
			b.log.Error().Err(err).Stringer("board", o.b).Msg("sequence number not offered")
			return nil
		}
		return b.writeAt(cmd, t.PingMargin(1))
	case opRequestInfo:
		return b.writeAt(protocol.RequestInfo{To: o.to}, b.pingMargin(o.to, t))
	case opBarrier:
		// всё, что стояло в очереди до барьера, уже записано
		close(o.done)
		return nil
	default:
		panic(fmt.Sprintf("boardbus: unhandled op %T", o))
	}
}

func (b *BoardBus) pingMargin(to byte, t Timing) time.Duration {
	if to == protocol.BroadcastAddress {
		return t.PingMargin(b.table.Len())
	}
	return t.PingMargin(1)
}

// refreshLEDs отправляет изменившиеся блоки последнего кадра.
// Флаг снимается до чтения кадра: кадр, пришедший во время отправки,
// поставит новое обновление.
func (b *BoardBus) refreshLEDs(t Timing) error {
	b.refreshPending.Store(false)
	f := b.frame.Load()
	if f == nil {
		return nil
	}
	boards := b.Boards()
	sent := 0
	for _, bd := range boards {
		cmd, changed := bd.LEDCommand(f.Block(bd.Position(), layout.BoardSize))
		if !changed {
			continue
		}
		b.silence.Wait()
		if err := b.write(cmd); err != nil {
			return err
		}
		sent++
	}
	if sent > 0 {
		b.silence.Extend(time.Now().Add(t.LEDMargin(len(boards))))
	}
	b.ledMeter.Tick()
	return nil
}

// readSensors: короткая пауза (плиты могут спать), широковещательный
// request_sensor и окно на ответы всех выданных слотов.
func (b *BoardBus) readSensors(t Timing) error {
	b.pollPending.Store(false)
	b.silence.Extend(time.Now().Add(t.SensorLeadIn))
	slots := int(b.nextSeq.Load())
	if err := b.writeAt(b.broadcast.SensorRequest(), t.SensorMargin(slots)); err != nil {
		return err
	}
	b.pollMeter.Tick()
	return nil
}
