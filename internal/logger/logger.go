package logger

import (
	"strings"

	"go.uber.org/zap"
)

func New(env string) (*zap.Logger, error) {
	switch strings.ToLower(env) {
	case "production", "prod":
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
