package matrix

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/shiwa/ledfloor/internal/board"
)

// buttonNotFoundAfter — через сколько предупредить, что плата кнопки так и не появилась
const buttonNotFoundAfter = time.Second

// BoardButton — плита как кнопка. Плата ищется лениво: нумерация идёт
// асинхронно, и первое время платы может ещё не быть.
type BoardButton struct {
	addr      byte
	find      func(byte) (*board.Board, bool)
	fn        func()
	threshold int
	log       zerolog.Logger
	now       func() time.Time

	mu      sync.Mutex
	board   *board.Board
	created time.Time
	warned  bool

	overridden atomic.Bool
}

// AddButton регистрирует кнопку; fn вызывается из цикла отрисовки на каждом
// кадре, пока плита нажата (или кнопка переопределена).
func (c *Controller) AddButton(addr byte, threshold int, fn func()) *BoardButton {
	b := newButton(addr, c.FindBoard, fn, threshold, c.log)
	c.mu.Lock()
	c.buttons = append(c.buttons, b)
	c.mu.Unlock()
	return b
}

func newButton(addr byte, find func(byte) (*board.Board, bool), fn func(), threshold int, log zerolog.Logger) *BoardButton {
	if threshold <= 0 {
		threshold = board.ButtonThreshold
	}
	b := &BoardButton{addr: addr, find: find, fn: fn, threshold: threshold, log: log, now: time.Now}
	b.created = b.now()
	return b
}

// Address — адрес платы кнопки
func (b *BoardButton) Address() byte { return b.addr }

// IsPressed — показание датчика выше порога. Пока плата не найдена — false;
// спустя секунду без платы пишется одно предупреждение.
func (b *BoardButton) IsPressed() bool {
	b.mu.Lock()
	if b.board == nil {
		if bd, ok := b.find(b.addr); ok {
			b.board = bd
		}
	}
	bd := b.board
	if bd == nil && !b.warned && b.now().Sub(b.created) > buttonNotFoundAfter {
		b.warned = true
		b.log.Warn().Uint8("address", b.addr).Msg("button board not found")
	}
	b.mu.Unlock()
	if bd == nil {
		return false
	}
	return bd.IsPressedAbove(b.threshold)
}

// SetOverride принудительно считает кнопку нажатой (например, клавиша в GUI)
func (b *BoardButton) SetOverride(v bool) { b.overridden.Store(v) }

// IsOverridden — кнопка переопределена
func (b *BoardButton) IsOverridden() bool { return b.overridden.Load() }

// Poll вызывает обработчик, если кнопка нажата
func (b *BoardButton) Poll() {
	if (b.IsPressed() || b.IsOverridden()) && b.fn != nil {
		b.fn()
	}
}

func (c *Controller) pollButtons() {
	c.mu.RLock()
	buttons := append([]*BoardButton(nil), c.buttons...)
	c.mu.RUnlock()
	for _, b := range buttons {
		b.Poll()
	}
}
