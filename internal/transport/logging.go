package transport

import (
	"encoding/json"

	applog "pitchosc/internal/log"
)

// LoggingTransport writes every message to the debug log as JSON.
type LoggingTransport struct{}

func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs data. It only fails if data cannot be marshalled.
func (lt *LoggingTransport) Send(data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	applog.Debugf("Transport: %s", b)
	return nil
}

func (lt *LoggingTransport) Close() error {
	applog.Debugf("Transport: LoggingTransport closed")
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
