// Package idpool — множество свободных адресов плат. Pop всегда отдаёт
// наименьший адрес: порядок нумерации детерминирован.
package idpool

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"
)

// MaxAddress — старший адрес платы; 255 зарезервирован под broadcast
const MaxAddress = 254

var (
	ErrEmpty      = errors.New("id pool is empty")
	ErrOutOfRange = errors.New("address out of range")
)

// Pool — потокобезопасный упорядоченный набор адресов (битовая карта 256 бит).
// Пул может разделяться несколькими шинами.
type Pool struct {
	mu  sync.Mutex
	set [4]uint64
	n   int
}

// New создаёт пул с начальными адресами; повторы игнорируются.
func New(addrs ...byte) (*Pool, error) {
	p := &Pool{}
	for _, a := range addrs {
		if _, err := p.Push(a); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Push возвращает адрес в пул. added == false, если адрес уже был в пуле.
func (p *Pool) Push(addr byte) (added bool, err error) {
	if addr > MaxAddress {
		return false, fmt.Errorf("push %d: %w", addr, ErrOutOfRange)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	w, bit := addr/64, uint64(1)<<(addr%64)
	if p.set[w]&bit != 0 {
		return false, nil
	}
	p.set[w] |= bit
	p.n++
	return true, nil
}

// Pop извлекает наименьший свободный адрес
func (p *Pool) Pop() (byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for w, word := range p.set {
		if word == 0 {
			continue
		}
		i := bits.TrailingZeros64(word)
		p.set[w] &^= uint64(1) << i
		p.n--
		return byte(w*64 + i), nil
	}
	return 0, ErrEmpty
}

// Remove удаляет адрес, если он есть; возвращает true при удалении.
func (p *Pool) Remove(addr byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, bit := addr/64, uint64(1)<<(addr%64)
	if p.set[w]&bit == 0 {
		return false
	}
	p.set[w] &^= bit
	p.n--
	return true
}

// Contains проверяет наличие адреса
func (p *Pool) Contains(addr byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.set[addr/64]&(uint64(1)<<(addr%64)) != 0
}

// Len — число свободных адресов
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}

// Addresses — свободные адреса по возрастанию
func (p *Pool) Addresses() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]byte, 0, p.n)
	for w, word := range p.set {
		for word != 0 {
			i := bits.TrailingZeros64(word)
			out = append(out, byte(w*64+i))
			word &^= uint64(1) << i
		}
	}
	return out
}
