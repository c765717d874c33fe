package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/max1187x/pkg/bus/i2cdev"
	"github.com/robotalks/max1187x/pkg/cli/sh"
	"github.com/robotalks/max1187x/pkg/config"
	"github.com/robotalks/max1187x/pkg/driver"
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
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	sh.Run(d, flag.Args()...)
}
