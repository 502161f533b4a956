package boardbus

import (
	"sync/atomic"
	"time"
)

// Timing — окна тишины шины. Значения подобраны на железе (скорость моста,
// время отрисовки плиты) и задаются конфигом; протоколом они не выводятся.
type Timing struct {
	// ping / назначение адреса: на каждый адрес таблицы
	PingSlot     time.Duration
	PingOverhead time.Duration // расхождение часов плат
	// пауза между offer_id и последующим ping
	AssignSettle time.Duration

	// send_led_data
	LEDTransferPerBoard time.Duration
	LEDRender           time.Duration
	LEDRenderWait       time.Duration
	LEDPadding          time.Duration

	// request_sensor
	SensorLeadIn   time.Duration // пауза перед запросом (плиты могут ещё спать)
	SensorSlot     time.Duration
	SensorOverhead time.Duration
	ADCSettle      time.Duration
	SensorPadding  time.Duration

	// пауза перед финальным "всё выключить"
	ShutdownSettle time.Duration
}

// DefaultTiming — значения, измеренные на мосту 500000 бод
func DefaultTiming() Timing {
	return Timing{
		PingSlot:            300 * time.Microsecond,
		PingOverhead:        15 * time.Microsecond,
		AssignSettle:        100 * time.Millisecond,
		LEDTransferPerBoard: 3 * time.Millisecond,
		LEDRender:           3 * time.Millisecond,
		LEDRenderWait:       1 * time.Millisecond,
		LEDPadding:          1 * time.Millisecond,
		SensorLeadIn:        10 * time.Millisecond,
		SensorSlot:          400 * time.Microsecond,
		SensorOverhead:      20 * time.Microsecond,
		ADCSettle:           100 * time.Microsecond,
		SensorPadding:       0,
		ShutdownSettle:      100 * time.Millisecond,
	}
}

// PingMargin — окно после ping: ответить может любой адрес таблицы,
// поэтому считается по всей таблице, а не по уже известным платам.
func (t Timing) PingMargin(tableSize int) time.Duration {
	return time.Duration(tableSize) * (t.PingSlot + t.PingOverhead)
}

// LEDMargin — окно после send_led_data: передача на все платы шины плюс отрисовка
func (t Timing) LEDMargin(boards int) time.Duration {
	return time.Duration(boards)*t.LEDTransferPerBoard + t.LEDRender + t.LEDRenderWait + t.LEDPadding
}

// SensorMargin — окно после request_sensor: платы отвечают по слотам номеров последовательности
func (t Timing) SensorMargin(slots int) time.Duration {
	return time.Duration(slots)*(t.SensorSlot+t.SensorOverhead) + t.ADCSettle + t.SensorPadding
}

// Silence — момент, до которого нельзя передавать. Только растёт:
// Extend берёт максимум из текущего и нового дедлайна.
type Silence struct {
	until atomic.Int64 // UnixNano; 0 — тишины нет
}

// Extend продлевает тишину до deadline, если он позже текущего; возвращает итоговый дедлайн.
func (s *Silence) Extend(deadline time.Time) time.Time {
	n := deadline.UnixNano()
	for {
		cur := s.until.Load()
		if n <= cur {
			return time.Unix(0, cur)
		}
		if s.until.CompareAndSwap(cur, n) {
			return deadline
		}
	}
}

// Until — текущий дедлайн (нулевое время, если тишины не было)
func (s *Silence) Until() time.Time {
	n := s.until.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Wait блокирует до конца тишины. Дедлайн перечитывается после каждого
// пробуждения: его могли продлить, пока ждали.
func (s *Silence) Wait() {
	for {
		d := time.Until(s.Until())
		if d <= 0 {
			return
		}
		t := time.NewTimer(d)
		<-t.C
	}
}
