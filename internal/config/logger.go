package config

import (
	"go.uber.org/zap"
)

// NewLogger returns a JSON production logger, or a console development
// logger when the config targets development.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	zcfg := zap.NewProductionConfig()
	zcfg.DisableStacktrace = true
	return zcfg.Build()
}
