package ctxutil

import "context"

type requestOriginKey struct{}

// RequestOrigin is the externally visible scheme and host of the inbound
// request, as seen by the client (forwarded headers already applied).
type RequestOrigin struct {
	Scheme string
	Host   string
}

func WithRequestOrigin(ctx context.Context, origin RequestOrigin) context.Context {
	return context.WithValue(Default(ctx), requestOriginKey{}, origin)
}

func GetRequestOrigin(ctx context.Context) (RequestOrigin, bool) {
	if ctx == nil {
		return RequestOrigin{}, false
	}
	origin, ok := ctx.Value(requestOriginKey{}).(RequestOrigin)
	if !ok || origin.Host == "" {
		return RequestOrigin{}, false
	}
	return origin, true
}
