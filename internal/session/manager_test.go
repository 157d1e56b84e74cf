package session

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

func TestPutReplacesExistingDraft(t *testing.T) {
	m := NewManager()
	m.Put(7, Draft{Step: StepEnterKWH, Slot: 3})
	m.Put(7, Draft{Step: StepChooseSlot})

	d, ok := m.Get(7)
	if !ok {
		t.Fatal("draft missing")
	}
	if d.Step != StepChooseSlot || d.Slot != 0 {
		t.Fatalf("old draft leaked through: %+v", d)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	m := NewManager()
	m.Put(7, Draft{Step: StepConfirm, Slot: 8, KWH: decimal.RequireFromString("4.5")})
	d, _ := m.Get(7)
	d.Slot = 99

	again, _ := m.Get(7)
	if again.Slot != 8 {
		t.Fatalf("stored draft mutated through copy: %+v", again)
	}
}

func TestClearAndInProgress(t *testing.T) {
	m := NewManager()
	if m.InProgress(1) {
		t.Fatal("no draft expected")
	}
	m.Put(1, Draft{Step: StepChooseSlot})
	if !m.InProgress(1) {
		t.Fatal("draft expected")
	}
	m.Clear(1)
	if m.InProgress(1) {
		t.Fatal("draft should be gone")
	}
	if _, ok := m.Get(1); ok {
		t.Fatal("cleared draft still readable")
	}
}

func TestAcquireSerializesPerUser(t *testing.T) {
	m := NewManager()
	const workers = 16
	const rounds = 100

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				release := m.Acquire(42)
				d, _ := m.Get(42)
				d.Slot++
				m.Put(42, d)
				release()
			}
		}()
	}
	wg.Wait()

	d, _ := m.Get(42)
	if d.Slot != workers*rounds {
		t.Fatalf("lost updates: slot counter = %d, want %d", d.Slot, workers*rounds)
	}
}

func TestAcquireIndependentUsers(t *testing.T) {
	m := NewManager()
	release := m.Acquire(1)
	done := make(chan struct{})
	go func() {
		r := m.Acquire(2)
		r()
		close(done)
	}()
	<-done // would deadlock if user locks were shared
	release()
}
