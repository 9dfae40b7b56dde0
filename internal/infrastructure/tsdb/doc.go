// Package tsdb writes InfluxDB line protocol over plain HTTP.
//
// It is the default write transport for the telemetry publisher: one POST
// per call to the InfluxDB v2 /api/v2/write endpoint, with the token in an
// "Authorization: Token" header. Only net/http is used, so the request is
// exactly what the caller built.
//
// # Usage
//
//	client, err := tsdb.New(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//
//	err = client.Write(ctx, writeURL, cfg.InfluxDB.Token, []byte("env temp=21.5 1700000000\n"))
//	var se *tsdb.StatusError
//	if errors.As(err, &se) {
//	    // InfluxDB rejected the write
//	}
//
// # Error Handling
//
// Every failure wraps ErrWriteFailed. A non-2xx response is a *StatusError
// carrying the status code and the server's message.
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
package tsdb
