package main

import (
	"io"
	"strings"
	"sync"
	"time"
)

type Spinner struct {
	frames  []string
	message string
	out     io.Writer

	mu      sync.Mutex
	running bool

	stop   sync.Once
	ticker *time.Ticker
	done   chan struct{}
}

func NewSpinner(out io.Writer) *Spinner {
	return &Spinner{
		frames: []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		out:    out,
		ticker: time.NewTicker(time.Millisecond * 90),
		done:   make(chan struct{}),
	}
}

func (s *Spinner) SetMessage(msg string) {
	msg = strings.TrimSpace(msg)
	msg = strings.TrimRight(msg, ".")
	s.message = msg
}

func (s *Spinner) Stop() {
	s.stop.Do(func() {
		close(s.done)
		s.ticker.Stop()

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.running {
			io.WriteString(s.out, "\x1b[0G\x1b[2K\x1b[0G")
		}
	})
}

func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	go s.run()
}

func (s *Spinner) run() {
	for i := 0; ; i++ {
		select {
		case <-s.ticker.C:
			f := spinStyle.Render(s.frames[i%len(s.frames)])
			io.WriteString(s.out, "\r"+f)
			if s.message != "" && i == 0 {
				io.WriteString(s.out, " "+s.message+"...")
			}
		case <-s.done:
			return
		}
	}
}
