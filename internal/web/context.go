package web

import (
	"context"
	"net/http"

	"github.com/pcharron/accountvet/internal/core"
)

// withRequestMetadata adds the client IP and User-Agent to context for the
// audit trail. RemoteAddr has already been rewritten by the TrustedRealIP
// middleware when applicable.
func withRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, r.RemoteAddr)
	ctx = core.ContextWithUserAgent(ctx, r.Header.Get("User-Agent"))
	return ctx
}
