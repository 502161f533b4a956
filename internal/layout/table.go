// Package layout — статическая таблица адрес -> позиция плиты и кадр пикселей пола.
package layout

import (
	"fmt"
	"sort"
)

// Position — логическая позиция плиты (в плитах, не в пикселях)
type Position struct {
	Column int
	Row    int
}

// Table — неизменяемая таблица назначений адресов. Строится один раз до старта шин.
type Table struct {
	byAddr map[byte]Position
	addrs  []byte
}

// Assignment — одна запись таблицы
type Assignment struct {
	Address byte
	Position
}

// NewTable строит таблицу; адрес 255 и повторы запрещены.
func NewTable(entries []Assignment) (*Table, error) {
	t := &Table{byAddr: make(map[byte]Position, len(entries))}
	for _, e := range entries {
		if e.Address == 0xFF {
			return nil, fmt.Errorf("address 255 is broadcast and cannot be assigned")
		}
		if _, dup := t.byAddr[e.Address]; dup {
			return nil, fmt.Errorf("address %d assigned twice", e.Address)
		}
		t.byAddr[e.Address] = e.Position
		t.addrs = append(t.addrs, e.Address)
	}
	sort.Slice(t.addrs, func(i, j int) bool { return t.addrs[i] < t.addrs[j] })
	return t, nil
}

// Grid — назначения для сетки columns x rows: address = base + columns*row + column
func Grid(columns, rows int, base byte) []Assignment {
	out := make([]Assignment, 0, columns*rows)
	for y := 0; y < rows; y++ {
		for x := 0; x < columns; x++ {
			out = append(out, Assignment{
				Address:  base + byte(columns*y+x),
				Position: Position{Column: x, Row: y},
			})
		}
	}
	return out
}

// Lookup возвращает позицию адреса
func (t *Table) Lookup(addr byte) (Position, bool) {
	p, ok := t.byAddr[addr]
	return p, ok
}

// Len — число назначенных адресов (весь пол, не одна шина)
func (t *Table) Len() int {
	return len(t.addrs)
}

// Addresses — все назначенные адреса по возрастанию
func (t *Table) Addresses() []byte {
	return append([]byte(nil), t.addrs...)
}

// Extent — размер пола в плитах: наибольшие столбец и строка плюс один
func (t *Table) Extent() (columns, rows int) {
	for _, p := range t.byAddr {
		columns = max(columns, p.Column+1)
		rows = max(rows, p.Row+1)
	}
	return columns, rows
}

// Within — адреса таблицы в диапазоне [lo, hi]
func (t *Table) Within(lo, hi byte) []byte {
	var out []byte
	for _, a := range t.addrs {
		if a >= lo && a <= hi {
			out = append(out, a)
		}
	}
	return out
}
