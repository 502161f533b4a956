// Package protocol — протокол шины плиток пола: кадры <addr><payload><cmd>,
// разбор ответов с подавлением эха, кодирование LED-данных и номеров последовательности.
package protocol

import "fmt"

// Границы кадра. Мост шины возвращает всё, что мастер записал, поэтому
// эхо мастера всегда обрамлено этими байтами.
const (
	FrameStart = 0x3C // '<'
	FrameEnd   = 0x3E // '>'
)

// Адресное пространство
const (
	BroadcastAddress = 0xFF // все платы слушают этот адрес
	MaxBoardAddress  = 0xFE
	// Ответы плат начинаются с байта адреса в диапазоне [128, 254].
	ResponseAddressMin = 0x80
	ResponseAddressMax = 0xFE
)

// Code — байт команды в кадре
type Code byte

// Мастер -> плата
const (
	CodeResetID             Code = 0x01
	CodeOfferID             Code = 0x03
	CodePingFromMaster      Code = 0x04
	CodeOfferSequenceNumber Code = 0x06
	CodeSendLEDData         Code = 0x10
	CodeRequestSensor       Code = 0x11
	CodeRequestInfo         Code = 0x1D
)

// Плата -> мастер
const (
	CodeRequestID  Code = 0x02
	CodePong       Code = 0x05
	CodeSensorData Code = 0x12
	CodeInfo       Code = 0x1E
	CodeDebug      Code = 0x1F
)

// ResetPayload — полезная нагрузка reset_id
var ResetPayload = []byte("RST")

// IsResponseCode сообщает, завершает ли байт запись ответа платы.
func IsResponseCode(c byte) bool {
	switch Code(c) {
	case CodeRequestID, CodePong, CodeSensorData, CodeInfo, CodeDebug:
		return true
	}
	return false
}

func (c Code) String() string {
	switch c {
	case CodeResetID:
		return "reset_id"
	case CodeOfferID:
		return "offer_id"
	case CodePingFromMaster:
		return "ping_from_master"
	case CodeOfferSequenceNumber:
		return "offer_sequence_number"
	case CodeSendLEDData:
		return "send_led_data"
	case CodeRequestSensor:
		return "request_sensor"
	case CodeRequestInfo:
		return "request_info"
	case CodeRequestID:
		return "request_id"
	case CodePong:
		return "pong"
	case CodeSensorData:
		return "sensor_data"
	case CodeInfo:
		return "info"
	case CodeDebug:
		return "debug"
	default:
		return fmt.Sprintf("code(0x%02x)", byte(c))
	}
}
