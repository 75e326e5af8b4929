package notify

import (
	"context"

	"github.com/fatali-fataliyev/wallet_tracker/internal/budget"
	"github.com/fatali-fataliyev/wallet_tracker/internal/contextutil"
	"github.com/sirupsen/logrus"
)

// LogNotifier writes notifications to a logger. It is used when no broker
// is configured.
type LogNotifier struct {
	logger *logrus.Logger
}

func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, msg budget.Notification) error {
	n.logger.WithFields(logrus.Fields{
		"trace_id": contextutil.TraceIDFromContext(ctx),
		"kind":     msg.Kind,
		"user_id":  msg.UserID,
		"email":    msg.Email,
	}).Infof("notification: %s\n%s", msg.Subject, msg.Body)
	return nil
}
