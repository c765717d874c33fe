package main

import (
	"flag"
	"log"
	"os"

	"github.com/robotalks/max1187x/pkg/mtp"
	"github.com/robotalks/max1187x/pkg/sink/mqtt"
	"github.com/robotalks/max1187x/pkg/sink/msgs"
)

var (
	mqttURL = "mqtt://localhost:1883/"
	device  = "+"
)

func init() {
	if val := os.Getenv("TSC_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&device, "device", device, "Device to monitor, + for all.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	q.OnConnect = func(q *mqtt.Queue) {
		log.Printf("connected to %s", mqttURL)
	}
	if token := q.Client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}

	q.Sub(device+"/"+mqtt.TopicCmdStatus, func(topic string, payload []byte) {
		log.Printf("%s: %s", topic, payload)
	})
	q.Sub(device+"/#", func(topic string, payload []byte) {
		msg, err := msgs.Decode(payload)
		if err != nil {
			return
		}
		switch m := msg.(type) {
		case *msgs.ReportMsg:
			log.Printf("%s: report %04x %s", topic, m.ReportID, mtp.FormatWords(m.Words))
		case *msgs.TouchMsg:
			if m.Wakeup {
				log.Printf("%s: wake-up", topic)
				return
			}
			log.Printf("%s: frame %d buttons %02x contacts %+v released %v",
				topic, m.FrameCounter, m.Buttons, m.Contacts, m.Released)
		}
	})
	<-(chan struct{})(nil)
}
