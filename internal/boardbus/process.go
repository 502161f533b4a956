package boardbus

import (
	"errors"

	"github.com/shiwa/ledfloor/internal/board"
	"github.com/shiwa/ledfloor/internal/idpool"
	"github.com/shiwa/ledfloor/internal/protocol"
)

// runProcess — горутина обработки: разбирает записи, ведёт нумерацию и
// состояние плат. Только она меняет набор плат и пул адресов этой шины.
func (b *BoardBus) runProcess() {
	defer b.wg.Done()
	for {
		ev, ok := b.events.pop(b.stop)
		if !ok {
			return
		}
		b.handle(ev)
	}
}

func (b *BoardBus) handle(ev event) {
	switch ev := ev.(type) {
	case responseEvent:
		b.handleRecord(ev.rec)
	case resetEvent:
		b.handleReset(ev)
	}
}

func (b *BoardBus) handleRecord(rec protocol.Record) {
	msg, err := protocol.Parse(rec)
	if err != nil {
		b.log.Error().Err(err).Uint8("code", uint8(rec.Code)).Msg("bad response")
		return
	}
	switch m := msg.(type) {
	case protocol.RequestID:
		b.assignID()
	case protocol.Pong:
		b.confirm(m.From)
	case protocol.SensorData:
		b.responseMeter.Tick()
		bd, ok := b.Board(m.From)
		if !ok {
			b.log.Error().Uint8("address", m.From).Msg("sensor data from unknown board")
			return
		}
		if err := bd.SetSensorValue(m.Value); err != nil {
			b.log.Error().Err(err).Stringer("board", bd).Msg("sensor value rejected")
		}
	case protocol.Info:
		b.log.Info().Uint8("address", m.From).Str("info", m.Text).Msg("board info")
	case protocol.Debug:
		b.log.Debug().Uint8("address", m.From).Str("text", m.Text).Msg("board debug")
	}
}

// assignID берёт наименьший свободный адрес и предлагает его неназначенной плате
func (b *BoardBus) assignID() {
	id, err := b.pool.Pop()
	if err != nil {
		if errors.Is(err, idpool.ErrEmpty) {
			b.log.Error().Msg("more boards than assignations, request_id ignored")
			return
		}
		b.log.Error().Err(err).Msg("address not assigned")
		return
	}
	gen := b.resetGen.Load()
	b.offered[id] = gen
	b.log.Debug().Uint8("id", id).Int64("gen", gen).Msg("offering address")
	b.commands.push(opAssignID{id: id, gen: gen})
}

// confirm учитывает pong: известная плата просто жива, новая получает номер слота.
func (b *BoardBus) confirm(addr byte) {
	if bd, ok := b.Board(addr); ok {
		b.log.Debug().Stringer("board", bd).Msg("pong")
		return
	}
	pos, ok := b.table.Lookup(addr)
	if !ok {
		b.log.Warn().Uint8("address", addr).Msg("board has no position in table, ignored")
		return
	}
	b.pool.Remove(addr)
	// плата без предложения отвечает адресом прошлого поколения
	b.joined[addr] = b.offered[addr]
	delete(b.offered, addr)
	seq := int(b.nextSeq.Add(1) - 1)
	bd := board.New(addr, pos, seq)
	b.mu.Lock()
	b.boards[addr] = bd
	b.mu.Unlock()
	b.log.Info().Stringer("board", bd).Int("seq", seq).Msg("board enumerated")
	if seq > protocol.MaxSequence {
		b.log.Error().Err(protocol.ErrSequenceOverflow).Stringer("board", bd).Msg("board tracked without sequence number")
		return
	}
	b.commands.push(opOfferSeq{b: bd})
}

// handleReset вызывается после отправки reset_id: адреса возвращаются в пул.
// Широковещательный сброс забирает только адреса поколений до ev.gen:
// предложенное после записи reset_id остаётся за платой.
func (b *BoardBus) handleReset(ev resetEvent) {
	if ev.addr != protocol.BroadcastAddress {
		b.mu.Lock()
		_, ok := b.boards[ev.addr]
		delete(b.boards, ev.addr)
		b.mu.Unlock()
		_, pending := b.offered[ev.addr]
		if ok || pending {
			delete(b.offered, ev.addr)
			delete(b.joined, ev.addr)
			b.returnAddress(ev.addr)
		}
		return
	}
	released, nextSeq := 0, 0
	b.mu.Lock()
	for addr, bd := range b.boards {
		if b.joined[addr] >= ev.gen {
			nextSeq = max(nextSeq, bd.SequenceNumber()+1)
			continue
		}
		delete(b.boards, addr)
		delete(b.joined, addr)
		b.returnAddress(addr)
		released++
	}
	b.mu.Unlock()
	for addr, gen := range b.offered {
		if gen < ev.gen {
			delete(b.offered, addr)
			b.returnAddress(addr)
		}
	}
	b.nextSeq.Store(int32(nextSeq))
	b.log.Info().Int("released", released).Int64("gen", ev.gen).Msg("all board addresses reset")
}

func (b *BoardBus) returnAddress(addr byte) {
	if _, err := b.pool.Push(addr); err != nil {
		b.log.Error().Err(err).Uint8("address", addr).Msg("address not returned to pool")
	}
}
