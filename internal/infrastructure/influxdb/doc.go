// Package influxdb writes line protocol through the official
// influxdb-client-go v2 library.
//
// It is the alternative write transport for the telemetry publisher,
// selected with influxdb.transport: client. Writes go through the
// library's blocking write API so each call reports the server's answer;
// the library's own batching and retry queue are not used.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Write(ctx, "home", "climate", []byte("env temp=21.5 1700000000\n"))
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
package influxdb
