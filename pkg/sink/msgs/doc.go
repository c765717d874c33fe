// Package msgs defines the messages published by sinks and their
// protobuf wire encoding.
//
// Field numbers:
//
//	ReportMsg:  1 device, 2 report id, 3 words (packed), 4 timestamp (unix ns)
//	ContactMsg: 1 finger id, 2 stylus, 3 x, 4 y, 5 z
//	TouchMsg:   1 device, 2 wakeup, 3 frame counter, 4 buttons,
//	            5 contacts (repeated ContactMsg), 6 released (packed), 7 timestamp
package msgs

// Messages are produced by the driver daemon and consumed by remote
// monitors over MQTT, websocket or a dump file.
