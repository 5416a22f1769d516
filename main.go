package main

import (
	"net/http"
	"os"
	"time"

	"github.com/karwei/ntfywatch/app"
	"github.com/karwei/ntfywatch/config"
	"github.com/karwei/ntfywatch/lib/api"
	"github.com/karwei/ntfywatch/lib/attach"
	"github.com/karwei/ntfywatch/lib/store"
	"github.com/karwei/ntfywatch/lib/syncer"
	"github.com/karwei/ntfywatch/present"
	"github.com/karwei/ntfywatch/relay"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewLogger() (*zap.Logger, error) {
	switch os.Getenv("ENVIRONMENT") {
	default:
		return zap.NewDevelopment()

	case "production":
		logCfg := zap.NewProductionConfig()
		logCfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			t = t.UTC()
			zapcore.ISO8601TimeEncoder(t, enc)
		}
		return logCfg.Build()
	}
}

func main() {
	fx.New(
		fx.Provide(config.NewConfig),
		fx.Provide(NewLogger),

		fx.Provide(app.NewDatabase),
		fx.Provide(app.NewTransport),

		fx.Provide(store.NewStore),
		fx.Provide(api.NewClient),
		fx.Provide(attach.NewFetcher),
		fx.Provide(relay.NewLogRelay),
		fx.Provide(present.NewPresenterRegistry),
		fx.Provide(syncer.NewSyncer),

		fx.Provide(app.NewAPI),

		fx.Invoke(func(*http.Server) {}),
	).Run()
}
