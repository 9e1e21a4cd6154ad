package httpapi

import (
	"context"
	"sync/atomic"
)

// base is canceled on shutdown. Hijacked connections (the /events stream)
// are not tracked by http.Server.Shutdown, so they watch it instead.
var base atomic.Pointer[context.Context]

// SetBaseContext sets the process-level context long-lived handlers end
// with. Nil restores context.Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		base.Store(nil)
		return
	}
	base.Store(&ctx)
}

func baseContext() context.Context {
	if p := base.Load(); p != nil {
		return *p
	}
	return context.Background()
}

// joinContexts is canceled when either a or b is done. cancel releases the
// watch on b.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
