package fiscal_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	fiscal "github.com/oficinapro/fiscal-api/internal/application/fiscal"
)

func TestTimerPollScheduler_DisparaUmaVez(t *testing.T) {
	s := fiscal.NewTimerPollScheduler()
	defer s.Shutdown()

	fired := make(chan struct{}, 4)
	s.Schedule("note-1", 10*time.Millisecond, func() { fired <- struct{}{} })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("o agendamento não disparou")
	}

	select {
	case <-fired:
		t.Fatal("o agendamento disparou mais de uma vez")
	case <-time.After(100 * time.Millisecond):
	}
}

// Agendar de novo a mesma nota substitui o timer anterior.
func TestTimerPollScheduler_ReagendamentoSubstitui(t *testing.T) {
	s := fiscal.NewTimerPollScheduler()
	defer s.Shutdown()

	fired := make(chan string, 4)
	s.Schedule("note-1", time.Hour, func() { fired <- "primeiro" })
	s.Schedule("note-1", 10*time.Millisecond, func() { fired <- "segundo" })

	select {
	case got := <-fired:
		assert.Equal(t, "segundo", got)
	case <-time.After(2 * time.Second):
		t.Fatal("o reagendamento não disparou")
	}

	select {
	case <-fired:
		t.Fatal("o agendamento substituído não deveria disparar")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTimerPollScheduler_CancelImpedeDisparo(t *testing.T) {
	s := fiscal.NewTimerPollScheduler()
	defer s.Shutdown()

	fired := make(chan struct{}, 1)
	s.Schedule("note-1", 20*time.Millisecond, func() { fired <- struct{}{} })
	s.Cancel("note-1")

	select {
	case <-fired:
		t.Fatal("o agendamento cancelado disparou")
	case <-time.After(150 * time.Millisecond):
	}

	// Cancelar nota sem agendamento é inofensivo
	s.Cancel("note-x")
}

func TestTimerPollScheduler_ShutdownCancelaTudo(t *testing.T) {
	s := fiscal.NewTimerPollScheduler()

	fired := make(chan struct{}, 4)
	s.Schedule("note-1", 20*time.Millisecond, func() { fired <- struct{}{} })
	s.Schedule("note-2", 20*time.Millisecond, func() { fired <- struct{}{} })
	s.Shutdown()

	select {
	case <-fired:
		t.Fatal("agendamento disparou após o shutdown")
	case <-time.After(150 * time.Millisecond):
	}
}
