package limiter

import (
	"context"
	"math"

	"golang.org/x/time/rate"

	"agesweep/internal/fsops"
)

// Deleter paces a wrapped fsops.Deleter to a maximum number of operations
// per second, to keep a large sweep from saturating a slow or shared disk.
type Deleter struct {
	next    fsops.Deleter
	limiter *rate.Limiter
}

// NewDeleter wraps next. A non-positive perSecond disables pacing and
// returns next unchanged.
func NewDeleter(next fsops.Deleter, perSecond float64) fsops.Deleter {
	if perSecond <= 0 {
		return next
	}
	burst := int(math.Ceil(perSecond))
	return &Deleter{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (d *Deleter) Remove(path string) error {
	d.wait()
	return d.next.Remove(path)
}

func (d *Deleter) RemoveDir(path string) error {
	d.wait()
	return d.next.RemoveDir(path)
}

// wait blocks until a token is available. Removals have no context, so the
// pass is never cut short; the burst is always >= 1 so Wait cannot fail.
func (d *Deleter) wait() {
	_ = d.limiter.Wait(context.Background())
}

// SetRate changes the pacing of an existing limiter.
func (d *Deleter) SetRate(perSecond float64) {
	d.limiter.SetLimit(rate.Limit(perSecond))
	d.limiter.SetBurst(int(math.Max(1, math.Ceil(perSecond))))
}
