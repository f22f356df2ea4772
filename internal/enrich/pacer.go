package enrich

import "time"

// Pacer enforces a minimum interval between calls to a shared public
// service. The clock and sleep functions are injectable so tests run
// without wall-clock delays.
type Pacer struct {
	MinInterval time.Duration

	now   func() time.Time
	sleep func(time.Duration)
	last  time.Time
}

// NewPacer returns a pacer backed by the real clock.
func NewPacer(minInterval time.Duration) *Pacer {
	return &Pacer{
		MinInterval: minInterval,
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// Wait blocks until at least MinInterval has passed since the previous
// Wait. The first call never blocks, so a batch of one incurs no delay.
func (p *Pacer) Wait() {
	if p.MinInterval <= 0 {
		p.last = p.now()
		return
	}
	if !p.last.IsZero() {
		if elapsed := p.now().Sub(p.last); elapsed < p.MinInterval {
			p.sleep(p.MinInterval - elapsed)
		}
	}
	p.last = p.now()
}
