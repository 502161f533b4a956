package protocol

import (
	"errors"
	"fmt"
)

// Command — команда мастера. Набор реализаций закрыт: ResetID, OfferID, Ping,
// OfferSequenceNumber, LEDData, RequestSensor, RequestInfo.
type Command interface {
	// Address — адрес получателя (BroadcastAddress = все платы)
	Address() byte
	Code() Code
	Payload() []byte
	isCommand()
}

// ResetID возвращает плату на широковещательный адрес и в ожидание нажатия
type ResetID struct{ To byte }

// OfferID предлагает неназначенной плате адрес ID (всегда широковещательно)
type OfferID struct{ ID byte }

// Ping — ping_from_master; платы отвечают pong по возрастанию адреса
type Ping struct{ To byte }

// OfferSequenceNumber назначает плате номер слота опроса датчиков
type OfferSequenceNumber struct {
	To  byte
	Seq uint16
}

// LEDData — закодированный кадр светодиодов (см. EncodeLEDs)
type LEDData struct {
	To   byte
	Data []byte
}

// RequestSensor запрашивает показание датчика
type RequestSensor struct{ To byte }

// RequestInfo запрашивает информацию о плате (версия, адрес)
type RequestInfo struct{ To byte }

func (c ResetID) Address() byte   { return c.To }
func (c ResetID) Code() Code      { return CodeResetID }
func (c ResetID) Payload() []byte { return ResetPayload }
func (ResetID) isCommand()        {}

func (c OfferID) Address() byte   { return BroadcastAddress }
func (c OfferID) Code() Code      { return CodeOfferID }
func (c OfferID) Payload() []byte { return []byte{c.ID} }
func (OfferID) isCommand()        {}

func (c Ping) Address() byte   { return c.To }
func (c Ping) Code() Code      { return CodePingFromMaster }
func (c Ping) Payload() []byte { return nil }
func (Ping) isCommand()        {}

func (c OfferSequenceNumber) Address() byte { return c.To }
func (c OfferSequenceNumber) Code() Code    { return CodeOfferSequenceNumber }
func (c OfferSequenceNumber) Payload() []byte {
	hi, lo := sequenceBytes(c.Seq)
	return []byte{hi, lo}
}
func (OfferSequenceNumber) isCommand() {}

func (c LEDData) Address() byte   { return c.To }
func (c LEDData) Code() Code      { return CodeSendLEDData }
func (c LEDData) Payload() []byte { return c.Data }
func (LEDData) isCommand()        {}

func (c RequestSensor) Address() byte   { return c.To }
func (c RequestSensor) Code() Code      { return CodeRequestSensor }
func (c RequestSensor) Payload() []byte { return nil }
func (RequestSensor) isCommand()        {}

func (c RequestInfo) Address() byte   { return c.To }
func (c RequestInfo) Code() Code      { return CodeRequestInfo }
func (c RequestInfo) Payload() []byte { return nil }
func (RequestInfo) isCommand()        {}

// Encode собирает кадр: '<', адрес, payload, код, '>'
func Encode(c Command) []byte {
	return AppendFrame(nil, c)
}

// AppendFrame дописывает кадр команды в dst
func AppendFrame(dst []byte, c Command) []byte {
	dst = append(dst, FrameStart, c.Address())
	dst = append(dst, c.Payload()...)
	return append(dst, byte(c.Code()), FrameEnd)
}

// RawFrame — кадр мастера, разобранный из потока (для сниффера и тестов)
type RawFrame struct {
	Address byte
	Payload []byte
	Code    Code
}

var errShortFrame = errors.New("frame too short")

// ParseFrames разбирает поток кадров мастера ("<...>" подряд).
// Байты вне кадров пропускаются.
func ParseFrames(stream []byte) ([]RawFrame, error) {
	var out []RawFrame
	for i := 0; i < len(stream); i++ {
		if stream[i] != FrameStart {
			continue
		}
		end := -1
		for j := i + 1; j < len(stream); j++ {
			if stream[j] == FrameEnd {
				end = j
				break
			}
		}
		if end < 0 {
			return out, fmt.Errorf("offset %d: unterminated frame", i)
		}
		body := stream[i+1 : end]
		if len(body) < 2 {
			return out, fmt.Errorf("offset %d: %w", i, errShortFrame)
		}
		out = append(out, RawFrame{
			Address: body[0],
			Payload: append([]byte(nil), body[1:len(body)-1]...),
			Code:    Code(body[len(body)-1]),
		})
		i = end
	}
	return out, nil
}
