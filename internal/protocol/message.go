package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Message — разобранный ответ платы. Реализации: RequestID, Pong,
// SensorData, Info, Debug.
type Message interface {
	isMessage()
}

// RequestID — неназначенная плата просит адрес
type RequestID struct{}

// Pong — ответ на ping_from_master
type Pong struct{ From byte }

// SensorData — показание датчика (десятичное ASCII на проводе)
type SensorData struct {
	From  byte
	Value int
}

// Info — текст о плате (версия и т.п.)
type Info struct {
	From byte
	Text string
}

// Debug — отладочный текст платы
type Debug struct {
	From byte
	Text string
}

func (RequestID) isMessage()  {}
func (Pong) isMessage()       {}
func (SensorData) isMessage() {}
func (Info) isMessage()       {}
func (Debug) isMessage()      {}

var (
	ErrUnknownCode   = errors.New("unknown response code")
	ErrNoAddress     = errors.New("response without board address")
	ErrBadSensorData = errors.New("malformed sensor data")
)

// Parse превращает запись декодера в типизированное сообщение
func Parse(r Record) (Message, error) {
	switch r.Code {
	case CodeRequestID:
		return RequestID{}, nil
	case CodePong:
		if !r.HasAddress {
			return nil, fmt.Errorf("pong: %w", ErrNoAddress)
		}
		return Pong{From: r.Address}, nil
	case CodeSensorData:
		if !r.HasAddress {
			return nil, fmt.Errorf("sensor_data: %w", ErrNoAddress)
		}
		v, err := strconv.Atoi(strings.TrimSpace(string(r.Data)))
		if err != nil {
			return nil, fmt.Errorf("sensor_data from %d %q: %w", r.Address, r.Data, ErrBadSensorData)
		}
		return SensorData{From: r.Address, Value: v}, nil
	case CodeInfo:
		if !r.HasAddress {
			return nil, fmt.Errorf("info: %w", ErrNoAddress)
		}
		return Info{From: r.Address, Text: string(r.Data)}, nil
	case CodeDebug:
		if !r.HasAddress {
			return nil, fmt.Errorf("debug: %w", ErrNoAddress)
		}
		return Debug{From: r.Address, Text: string(r.Data)}, nil
	default:
		return nil, fmt.Errorf("%v: %w", r.Code, ErrUnknownCode)
	}
}
