// Package ratemeter считает частоту циклов (обновлений LED, опросов датчиков) за скользящее окно.
package ratemeter

import (
	"sync"
	"time"
)

// Meter — счётчик событий за окно; безопасен для конкурентного использования.
type Meter struct {
	mu      sync.Mutex
	window  time.Duration
	samples []time.Time
	now     func() time.Time
}

// New создаёт счётчик с окном window (0 = 1 с)
func New(window time.Duration) *Meter {
	if window <= 0 {
		window = time.Second
	}
	return &Meter{window: window, now: time.Now}
}

// Tick отмечает завершение цикла
func (m *Meter) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.samples = append(m.samples, now)
	m.pruneLocked(now)
}

// Rate — циклов в секунду за последнее окно
func (m *Meter) Rate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked(m.now())
	return float64(len(m.samples)) / m.window.Seconds()
}

func (m *Meter) pruneLocked(now time.Time) {
	cut := 0
	for cut < len(m.samples) && now.Sub(m.samples[cut]) >= m.window {
		cut++
	}
	if cut > 0 {
		m.samples = append(m.samples[:0], m.samples[cut:]...)
	}
}
