package mqtt

import (
	"github.com/golang/glog"

	"github.com/robotalks/max1187x/pkg/mtp"
)

// Commander sends raw command words, implemented by driver.Driver.
type Commander interface {
	SendRawCommand(words []uint16) error
}

// CommandListener accepts hex encoded commands on <device>/cmd and
// replies "ok" or the error on <device>/cmd/status.
type CommandListener struct {
	Device    string
	Commander Commander
	Replies   Pubber

	sub *Subscription
}

// Start subscribes to the command topic.
func (l *CommandListener) Start(q *Queue) {
	l.sub = q.Sub(l.Device+"/"+TopicCmd, l.HandleMessage)
}

// Stop unsubscribes.
func (l *CommandListener) Stop() error {
	if l.sub == nil {
		return nil
	}
	sub := l.sub
	l.sub = nil
	return sub.Close()
}

// HandleMessage parses and sends a command.
func (l *CommandListener) HandleMessage(topic string, payload []byte) {
	words, err := mtp.ParseWords(string(payload))
	if err == nil {
		err = l.Commander.SendRawCommand(words)
	}
	status := "ok"
	if err != nil {
		glog.Warningf("remote command %q: %v", payload, err)
		status = err.Error()
	}
	if l.Replies != nil {
		l.Replies.Pub(l.Device+"/"+TopicCmdStatus, []byte(status))
	}
}
