package main

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fsdevblog/shortlinks/internal/app"
	"github.com/fsdevblog/shortlinks/internal/bmeta"
	"github.com/fsdevblog/shortlinks/internal/config"
)

// Заполняются при сборке: go build -ldflags "-X main.buildVersion=v1.0.0 ...".
var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	appConf, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	a := app.Must(app.New(*appConf))

	fields := append(bmeta.New(buildVersion, buildDate, buildCommit).Fields(),
		zap.String("address", appConf.ServerAddress),
		zap.String("storage", string(appConf.StorageType())),
		zap.Duration("defaultTTL", appConf.DefaultTTL),
		zap.Bool("https", appConf.EnableHTTPS),
	)
	a.Logger.Info("Starting server", fields...)
	if runErr := a.Run(); runErr != nil && !errors.Is(runErr, context.Canceled) {
		panic(runErr)
	}
}
