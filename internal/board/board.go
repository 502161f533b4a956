// Package board — состояние одной плиты на шине и построители её команд.
// Board не выполняет ввод-вывод: команды отправляет горутина отправки шины.
package board

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/shiwa/ledfloor/internal/layout"
	"github.com/shiwa/ledfloor/internal/protocol"
)

// Диапазон АЦП датчика
const (
	SensorMin = 0
	SensorMax = 1023
	// SensorUnknown — показание ещё не получено
	SensorUnknown = -1
	// ButtonThreshold — порог "нажата" по умолчанию
	ButtonThreshold = 100
)

// ErrSensorRange — показание вне [0, 1023]
var ErrSensorRange = errors.New("sensor value out of range")

// Board — плита. Адрес, позиция и номер последовательности неизменны после создания;
// показание датчика пишет только горутина обработки, читать можно из любой.
type Board struct {
	addr byte
	pos  layout.Position
	seq  int

	sensor atomic.Int32

	// последний отправленный блок пикселей (до кодирования)
	mu            sync.Mutex
	lastDisplayed []uint8
}

// New создаёт плиту с назначенной позицией и номером последовательности
func New(addr byte, pos layout.Position, seq int) *Board {
	b := &Board{addr: addr, pos: pos, seq: seq}
	b.sensor.Store(SensorUnknown)
	return b
}

// Broadcast — псевдоплита с адресом 255 (слушают все)
func Broadcast() *Board {
	return New(protocol.BroadcastAddress, layout.Position{}, -1)
}

func (b *Board) Address() byte             { return b.addr }
func (b *Board) Position() layout.Position { return b.pos }
func (b *Board) Column() int               { return b.pos.Column }
func (b *Board) Row() int                  { return b.pos.Row }
func (b *Board) SequenceNumber() int       { return b.seq }
func (b *Board) SensorValue() int          { return int(b.sensor.Load()) }

func (b *Board) String() string {
	return fmt.Sprintf("board %d (col=%d row=%d seq=%d)", b.addr, b.pos.Column, b.pos.Row, b.seq)
}

// SetSensorValue сохраняет показание; вне диапазона — ошибка, старое значение остаётся.
func (b *Board) SetSensorValue(v int) error {
	if v < SensorMin || v > SensorMax {
		return fmt.Errorf("board %d: %d: %w", b.addr, v, ErrSensorRange)
	}
	b.sensor.Store(int32(v))
	return nil
}

// IsButtonPressed — показание выше ButtonThreshold
func (b *Board) IsButtonPressed() bool {
	return b.IsPressedAbove(ButtonThreshold)
}

// IsPressedAbove — показание выше заданного порога
func (b *Board) IsPressedAbove(threshold int) bool {
	return b.SensorValue() > threshold
}

// LEDCommand строит send_led_data для блока пикселей (layout.BoardSize строк).
// changed == false, если блок побайтно совпадает с последним отправленным:
// тогда отправлять ничего не нужно.
func (b *Board) LEDCommand(block []uint8) (cmd protocol.LEDData, changed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lastDisplayed != nil && bytes.Equal(b.lastDisplayed, block) {
		return protocol.LEDData{}, false
	}
	b.lastDisplayed = append(b.lastDisplayed[:0], block...)
	return protocol.LEDData{To: b.addr, Data: protocol.EncodeLEDs(block, layout.BoardSize)}, true
}

// ForceLEDCommand строит send_led_data без проверки кэша
func (b *Board) ForceLEDCommand(block []uint8) protocol.LEDData {
	return protocol.LEDData{To: b.addr, Data: protocol.EncodeLEDs(block, layout.BoardSize)}
}

// ForgetDisplayed сбрасывает кэш: следующий LEDCommand отправит блок в любом случае.
// Нужен после широковещательной записи LED, которая перезаписала изображение.
func (b *Board) ForgetDisplayed() {
	b.mu.Lock()
	b.lastDisplayed = nil
	b.mu.Unlock()
}

func (b *Board) SensorRequest() protocol.RequestSensor { return protocol.RequestSensor{To: b.addr} }
func (b *Board) Ping() protocol.Ping                   { return protocol.Ping{To: b.addr} }
func (b *Board) Reset() protocol.ResetID               { return protocol.ResetID{To: b.addr} }
func (b *Board) RequestInfo() protocol.RequestInfo     { return protocol.RequestInfo{To: b.addr} }

// OfferID — предложение адреса id неназначенной плате (только через broadcast)
func OfferID(id byte) protocol.OfferID { return protocol.OfferID{ID: id} }

// OfferSequenceNumber строит команду назначения номера слота
func (b *Board) OfferSequenceNumber() (protocol.OfferSequenceNumber, error) {
	return protocol.NewOfferSequenceNumber(b.addr, b.seq)
}
