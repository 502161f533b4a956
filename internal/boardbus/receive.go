package boardbus

import (
	"fmt"

	"github.com/shiwa/ledfloor/internal/protocol"
)

const readBufferSize = 256

// события для горутины обработки
type event interface{ isEvent() }

type responseEvent struct{ rec protocol.Record }

// resetEvent: reset_id записан в порт, gen — поколение после записи.
type resetEvent struct {
	addr byte
	gen  int64
}

func (responseEvent) isEvent() {}
func (resetEvent) isEvent()    {}

// runReceive — горутина приёма: читает порт и отдаёт записи декодера на обработку.
// Разбор сообщений и логика плат здесь не выполняются: чтение не должно отставать от шины.
func (b *BoardBus) runReceive() {
	defer b.wg.Done()
	dec := protocol.NewDecoder(b.log)
	buf := make([]byte, readBufferSize)
	for !b.stopping() {
		n, err := b.port.Read(buf)
		for _, rec := range dec.Decode(buf[:n]) {
			b.events.push(responseEvent{rec: rec})
		}
		if err != nil {
			if !b.stopping() {
				b.fail(fmt.Errorf("read: %w", err))
			}
			return
		}
	}
}
