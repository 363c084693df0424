package logger

import (
	"go.uber.org/zap"
)

// GO_ENV=prod ならJSON、それ以外は開発用の見やすい出力
func New(goEnv string) (*zap.Logger, error) {
	if goEnv == "prod" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
