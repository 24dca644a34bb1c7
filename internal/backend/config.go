package backend

import (
	"fmt"

	"gmscanner/internal/amqp"
	"gmscanner/internal/config"
)

// Config holds what the factory needs to build a strategy.
type Config struct {
	Mode         Mode
	DeviceID     string
	SQLiteDBPath string
	AMQP         amqp.Config
}

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	mode := Mode(appConfig.OperatingMode)
	if !mode.IsValid() {
		return Config{}, fmt.Errorf("invalid operating mode in config: %s", appConfig.OperatingMode)
	}
	return Config{
		Mode:         mode,
		DeviceID:     appConfig.DeviceID,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		AMQP: amqp.Config{
			URL:          appConfig.AMQPURL,
			Exchange:     appConfig.AMQPExchange,
			CommandQueue: appConfig.AMQPCommandQueue,
			EventQueue:   appConfig.AMQPEventQueue,
			DeviceID:     appConfig.DeviceID,
		},
	}, nil
}

func (c Config) Validate() error {
	if !c.Mode.IsValid() {
		return fmt.Errorf("invalid operating mode: %s", c.Mode)
	}
	if c.DeviceID == "" {
		return fmt.Errorf("device id is required")
	}
	if c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required")
	}
	if c.Mode == Networked && c.AMQP.URL == "" {
		return fmt.Errorf("AMQP URL is required for networked mode")
	}
	return nil
}
