package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"net/http"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/max1187x/pkg/bus/i2cdev"
	"github.com/robotalks/max1187x/pkg/config"
	"github.com/robotalks/max1187x/pkg/driver"
	"github.com/robotalks/max1187x/pkg/framework"
	"github.com/robotalks/max1187x/pkg/sink"
	"github.com/robotalks/max1187x/pkg/sink/mqtt"
	"github.com/robotalks/max1187x/pkg/sink/stream"
	"github.com/robotalks/max1187x/pkg/sink/websocket"
)

func init() {
	config.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf, err := config.Resolve()
	if err != nil {
		glog.Exitf("config: %v", err)
	}
	bus, err := i2cdev.Open(conf.Bus, conf.Address)
	if err != nil {
		glog.Exit(err)
	}
	defer bus.Close()

	d := driver.New(bus, conf.DriverConfig())
	if conf.ResetGPIO != "" {
		d.PowerCycler = i2cdev.NewGPIOReset(conf.ResetGPIO)
	}

	runner := framework.NewRunner().HandleSignals()
	var sinks sink.Fanout

	if conf.MQTTURL != "" {
		q, err := mqtt.NewQueueFromURL(conf.MQTTURL)
		if err != nil {
			glog.Exitf("mqtt: %v", err)
		}
		sinks.Add(&mqtt.Publisher{Queue: q, Device: conf.Device})
		listener := &mqtt.CommandListener{Device: conf.Device, Commander: d, Replies: q}
		listener.Start(q)
		runner.Go(q)
	}

	if conf.Listen != "" {
		b := websocket.NewBroadcaster(conf.Device)
		defer b.Close()
		sinks.Add(b)
		mux := http.NewServeMux()
		mux.Handle("/reports", b.Handler())
		srv := &http.Server{Addr: conf.Listen, Handler: mux}
		runner.Go(framework.NamedRun("websocket", framework.RunFunc(func(ctx context.Context) error {
			glog.Infof("websocket listening on %s", conf.Listen)
			return framework.RunWithContextCancel(ctx, func() { srv.Close() }, srv.ListenAndServe)
		})))
	}

	if conf.Dump != "" {
		f, err := os.Create(conf.Dump)
		if err != nil {
			glog.Exitf("dump: %v", err)
		}
		defer f.Close()
		sinks.Add(stream.NewWriter(f, conf.Device))
	}

	d.Hub().Sink = &sinks
	d.TouchSink = &sinks
	d.Wakeup = sinks.Wakeup()
	runner.Go(d)

	if conf.UpdateOnStart {
		go func() {
			res, err := d.ValidateFirmware(runner.Context, false)
			if err != nil {
				glog.Errorf("firmware validation: %v", err)
				return
			}
			glog.Infof("firmware validated, %d reprogramming attempts", res.Attempts)
		}()
	} else if err := d.SetTouchReportMode(driver.TouchReportExtended); err != nil {
		glog.Warningf("set touch report mode: %v", err)
	}

	if err := runner.Wait(); err != nil {
		glog.Error(err)
		glog.Flush()
		os.Exit(1)
	}
}
