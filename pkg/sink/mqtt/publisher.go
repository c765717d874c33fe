package mqtt

import (
	"context"
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/robotalks/max1187x/pkg/mtp"
	"github.com/robotalks/max1187x/pkg/sink/msgs"
	"github.com/robotalks/max1187x/pkg/touch"
)

// Pubber publishes payloads, implemented by Queue.
type Pubber interface {
	Pub(topic string, payload []byte) paho.Token
}

// Topics under the device name.
const (
	TopicReport    = "report"
	TopicTouch     = "touch"
	TopicCmd       = "cmd"
	TopicCmdStatus = "cmd/status"
)

// Publisher publishes encoded reports to <device>/report/<id> and touch
// updates to <device>/touch.
type Publisher struct {
	Queue  Pubber
	Device string
}

// ReportTopic returns the topic of a report ID.
func (p *Publisher) ReportTopic(reportID uint16) string {
	return fmt.Sprintf("%s/%s/%04x", p.Device, TopicReport, reportID)
}

// HandleReport implements mtp.ReportSink.
func (p *Publisher) HandleReport(ctx context.Context, rpt *mtp.Report) {
	p.publish(p.ReportTopic(rpt.ID()), msgs.NewReportMsg(p.Device, rpt))
}

// HandleTouch implements driver.TouchSink.
func (p *Publisher) HandleTouch(ctx context.Context, u *touch.Update) {
	p.publish(p.Device+"/"+TopicTouch, msgs.NewTouchMsg(p.Device, u))
}

func (p *Publisher) publish(topic string, msg msgs.Message) {
	data, err := msgs.Encode(msg)
	if err != nil {
		glog.Errorf("encode %s: %v", topic, err)
		return
	}
	p.Queue.Pub(topic, data)
}
