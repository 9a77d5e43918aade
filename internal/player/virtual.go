// Package player provides a headless player that keeps time against the
// wall clock. The CLI uses it in place of a real media pipeline.
package player

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	}
	return "stopped"
}

type Virtual struct {
	mu       sync.Mutex
	duration float64
	state    State
	rate     float64
	base     float64   // position at anchor
	anchor   time.Time // wall time the current run started
	now      func() time.Time
}

// NewVirtual creates a player for media of the given length. A duration of
// zero means unknown and disables clamping.
func NewVirtual(duration time.Duration) *Virtual {
	return &Virtual{duration: duration.Seconds(), rate: 1, now: time.Now}
}

func (v *Virtual) Play() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == Playing {
		return
	}
	v.base = v.positionLocked()
	v.anchor = v.now()
	v.state = Playing
	log.Debug().Str("module", "player").Float64("pos", v.base).Msg("play")
}

func (v *Virtual) Pause() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.base = v.positionLocked()
	v.state = Paused
	log.Debug().Str("module", "player").Float64("pos", v.base).Msg("pause")
}

func (v *Virtual) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.base = 0
	v.state = Stopped
	log.Debug().Str("module", "player").Msg("stop")
}

func (v *Virtual) Seek(pos float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.base = v.clamp(pos)
	v.anchor = v.now()
	if v.state == Stopped {
		v.state = Paused
	}
	log.Debug().Str("module", "player").Float64("pos", v.base).Msg("seek")
}

func (v *Virtual) SetRate(rate float64) {
	if rate <= 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.base = v.positionLocked()
	v.anchor = v.now()
	v.rate = rate
}

func (v *Virtual) Position() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.positionLocked()
}

func (v *Virtual) Duration() float64 { return v.duration }

func (v *Virtual) Rate() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rate
}

func (v *Virtual) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *Virtual) positionLocked() float64 {
	if v.state != Playing {
		return v.base
	}
	elapsed := v.now().Sub(v.anchor).Seconds() * v.rate
	return v.clamp(v.base + elapsed)
}

func (v *Virtual) clamp(pos float64) float64 {
	if pos < 0 {
		return 0
	}
	if v.duration > 0 && pos > v.duration {
		return v.duration
	}
	return pos
}
