// Package influxdb provides the optional time-series telemetry sink.
//
// Every pin value carried by a device report can be recorded as a point in
// InfluxDB, giving dashboards a history of the whole fleet without touching
// the relational store. Writes are non-blocking and batched; losing the
// telemetry sink never affects report processing.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without telemetry
//	} else if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WritePinValue("kitchen", "lamp", store.PinKindOutput, 1)
package influxdb
