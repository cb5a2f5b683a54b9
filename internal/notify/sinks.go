package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// LogSink writes notifications to a logrus logger.
type LogSink struct {
	Logger logrus.FieldLogger
}

func (s LogSink) Show(n Notification) {
	entry := s.Logger.WithFields(logrus.Fields{"notification_id": n.ID, "severity": n.Severity})
	switch n.Severity {
	case Error:
		entry.Warn(n.Message)
	default:
		entry.Info(n.Message)
	}
}

func (s LogSink) Dismiss(n Notification) {
	s.Logger.WithField("notification_id", n.ID).Debug("notification dismissed")
}

// WriterSink prints notifications for a terminal user.
type WriterSink struct {
	mu sync.Mutex
	W  io.Writer
}

func (s *WriterSink) Show(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintf(s.W, "[%s] %s\n", n.Severity, n.Message)
}

func (s *WriterSink) Dismiss(Notification) {}
