package idpool

import (
	"errors"
	"math/rand"
	"sort"
	"sync"
	"testing"
)

func TestPool_PopLowest(t *testing.T) {
	p, err := New(140, 130, 200, 128)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []byte{128, 130, 140, 200} {
		got, err := p.Pop()
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("Pop = %d, want %d", got, want)
		}
	}
	if _, err := p.Pop(); !errors.Is(err, ErrEmpty) {
		t.Errorf("Pop on empty pool: err = %v, want ErrEmpty", err)
	}
}

func TestPool_PushRemove(t *testing.T) {
	p, _ := New(10, 11, 12)

	if added, _ := p.Push(11); added {
		t.Error("Push of present address must not add a duplicate")
	}
	if p.Len() != 3 {
		t.Errorf("Len = %d, want 3", p.Len())
	}
	if !p.Remove(11) || p.Remove(11) {
		t.Error("Remove should succeed once")
	}
	if p.Contains(11) {
		t.Error("11 still in pool after Remove")
	}
	if _, err := p.Push(255); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Push(255): err = %v, want ErrOutOfRange", err)
	}
	if _, err := New(1, 255); err == nil {
		t.Error("New with broadcast address must fail")
	}
}

// Случайная последовательность операций против эталонной модели (map).
func TestPool_RandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	p, _ := New()
	model := map[byte]bool{}

	for i := 0; i < 5000; i++ {
		addr := byte(rng.Intn(MaxAddress + 1))
		switch rng.Intn(3) {
		case 0:
			if _, err := p.Push(addr); err != nil {
				t.Fatal(err)
			}
			model[addr] = true
		case 1:
			got, err := p.Pop()
			if len(model) == 0 {
				if !errors.Is(err, ErrEmpty) {
					t.Fatalf("step %d: expected ErrEmpty", i)
				}
				continue
			}
			want := byte(255)
			for a := range model {
				if a < want {
					want = a
				}
			}
			if err != nil || got != want {
				t.Fatalf("step %d: Pop = %d (%v), want %d", i, got, err, want)
			}
			delete(model, want)
		case 2:
			if p.Remove(addr) != model[addr] {
				t.Fatalf("step %d: Remove(%d) disagrees with model", i, addr)
			}
			delete(model, addr)
		}

		addrs := p.Addresses()
		if len(addrs) != len(model) || p.Len() != len(model) {
			t.Fatalf("step %d: pool has %d, model %d", i, len(addrs), len(model))
		}
		if !sort.SliceIsSorted(addrs, func(a, b int) bool { return addrs[a] < addrs[b] }) {
			t.Fatalf("step %d: Addresses not ascending: %v", i, addrs)
		}
		for j := 1; j < len(addrs); j++ {
			if addrs[j] == addrs[j-1] {
				t.Fatalf("step %d: duplicate %d", i, addrs[j])
			}
		}
	}
}

func TestPool_ConcurrentPopsAreUnique(t *testing.T) {
	var all []byte
	for a := 0; a <= MaxAddress; a++ {
		all = append(all, byte(a))
	}
	p, _ := New(all...)

	var mu sync.Mutex
	seen := map[byte]int{}
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				a, err := p.Pop()
				if err != nil {
					return
				}
				mu.Lock()
				seen[a]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != MaxAddress+1 {
		t.Errorf("popped %d distinct addresses, want %d", len(seen), MaxAddress+1)
	}
	for a, n := range seen {
		if n != 1 {
			t.Errorf("address %d popped %d times", a, n)
		}
	}
}
