package app

import (
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewTransport is the single outbound HTTP transport shared by the API
// client, the attachment fetcher and the presenters.
func NewTransport(lc fx.Lifecycle, log *zap.Logger) http.RoundTripper {
	return &transport{http.DefaultTransport, log}
}

type transport struct {
	base http.RoundTripper
	log  *zap.Logger
}

func (tpt *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := tpt.base.RoundTrip(req)
	if err == nil {
		tpt.log.Sugar().Debugw("Outbound request", "method", req.Method, "url", req.URL.String(), "status", res.StatusCode)
	}
	return res, err
}
