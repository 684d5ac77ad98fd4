package httpapi

import "context"

// serverBaseCtx is canceled by the process on shutdown so in-flight relays
// end with it.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level context joined into every request.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts returns a child of b that is also canceled when a is done.
// The cancel func must be called when the handler ends.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(b)
	stop := context.AfterFunc(a, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
