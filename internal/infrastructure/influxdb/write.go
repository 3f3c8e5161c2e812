package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/petersohn/home-automation/internal/store"
)

// WritePinValue records a reported pin value.
//
// One point per pin per report keeps the history of every input and
// output pin in the fleet. The write is non-blocking; points are batched
// and sent asynchronously.
func (c *Client) WritePinValue(device, pin string, kind store.PinKind, value int64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"pin_value",
		map[string]string{
			"device": device,
			"pin":    pin,
			"kind":   string(kind),
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDeviceSeen records a device report arrival. Useful for uptime
// dashboards alongside the pin history.
func (c *Client) WriteDeviceSeen(device string, version int64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_seen",
		map[string]string{
			"device": device,
		},
		map[string]interface{}{
			"version": version,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
