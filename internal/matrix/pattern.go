package matrix

import (
	"fmt"

	"github.com/shiwa/ledfloor/internal/board"
	"github.com/shiwa/ledfloor/internal/layout"
)

// Off — чёрный кадр
type Off struct{}

func (Off) Step()              {}
func (Off) Draw(*layout.Frame) {}

// TestPattern — проверочная картинка пола: назначенные в таблице плиты синие,
// пронумерованные зелёные, нажатые белые.
type TestPattern struct {
	Table     *layout.Table
	Boards    func() []*board.Board
	Threshold int
}

var (
	colorAssigned   = [3]uint8{0, 0, 160}
	colorEnumerated = [3]uint8{0, 128, 0}
	colorPressed    = [3]uint8{200, 200, 200}
)

func (p *TestPattern) Step() {}

func (p *TestPattern) Draw(f *layout.Frame) {
	fill := func(pos layout.Position, c [3]uint8) {
		f.FillRect(pos.Column*layout.BoardSize, pos.Row*layout.BoardSize, layout.BoardSize, layout.BoardSize, c[0], c[1], c[2])
	}
	for _, addr := range p.Table.Addresses() {
		pos, _ := p.Table.Lookup(addr)
		fill(pos, colorAssigned)
	}
	if p.Boards == nil {
		return
	}
	threshold := p.Threshold
	if threshold <= 0 {
		threshold = board.ButtonThreshold
	}
	for _, bd := range p.Boards() {
		c := colorEnumerated
		if bd.IsPressedAbove(threshold) {
			c = colorPressed
		}
		fill(bd.Position(), c)
	}
}

// NewRenderer возвращает встроенный рисунок по имени: off или test
func (c *Controller) NewRenderer(name string, threshold int) (Renderer, error) {
	switch name {
	case "off":
		return Off{}, nil
	case "test":
		return &TestPattern{Table: c.opts.Table, Boards: c.Boards, Threshold: threshold}, nil
	}
	return nil, fmt.Errorf("unknown pattern %q", name)
}

// SetRenderer заменяет рисунок; вызывать до Start
func (c *Controller) SetRenderer(r Renderer) {
	c.opts.Renderer = r
}
