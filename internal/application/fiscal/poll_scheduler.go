package fiscal

import (
	"sync"
	"time"
)

// TimerPollScheduler agenda consultas de recibo com time.AfterFunc, uma por
// nota. O disparo remove a entrada antes de executar fn; Cancel interrompe um
// timer pendente sem executá-lo.
type TimerPollScheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewTimerPollScheduler() *TimerPollScheduler {
	return &TimerPollScheduler{timers: make(map[string]*time.Timer)}
}

// Schedule agenda fn para depois de delay. Agendamento repetido para a mesma
// nota substitui o anterior.
func (s *TimerPollScheduler) Schedule(noteID string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[noteID]; ok {
		t.Stop()
	}
	s.timers[noteID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, noteID)
		s.mu.Unlock()
		fn()
	})
}

// Cancel interrompe o agendamento pendente da nota, se houver.
func (s *TimerPollScheduler) Cancel(noteID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[noteID]; ok {
		t.Stop()
		delete(s.timers, noteID)
	}
}

// Shutdown cancela todos os agendamentos pendentes (graceful shutdown).
func (s *TimerPollScheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

var _ PollScheduler = (*TimerPollScheduler)(nil)
