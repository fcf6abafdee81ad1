package server

import (
	"pricewatch/internal/client"
	"pricewatch/internal/database"
	"pricewatch/internal/tracker"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

type Server struct {
	DB                database.Database
	Engine            *tracker.Engine
	Client            client.Client
	Logger            logger
	AuthSecretKey     jwk.Key
	AdminPasswordHash []byte
}

type logger interface {
	Debug(v ...any)
	Info(v ...any)
	Error(v ...any)
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Errorf(format string, v ...any)
	Tracef(format string, v ...any)
}
