package observd

import (
	ghandlers "github.com/gorilla/handlers"
	"io"
	"net"
	"net/http"
	"time"
)

func permissiveCorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Add("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept")
		next.ServeHTTP(w, r)
	})
}

func contentTypeMiddlewareFunc(contentType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", contentType)
			next.ServeHTTP(w, r)
		})
	}
}

// writeLog logs one request in the shape of the Apache common log,
// but as structured attributes. The writer is unused.
func (d *ObserveDaemon) writeLog(_ io.Writer, p ghandlers.LogFormatterParams) {
	host, _, err := net.SplitHostPort(p.Request.RemoteAddr)
	if err != nil {
		host = p.Request.RemoteAddr
	}
	uri := p.Request.RequestURI
	if uri == "" {
		uri = p.URL.RequestURI()
	}
	d.logger.Debug("HTTP",
		"remote", host,
		"method", p.Request.Method,
		"uri", uri,
		"proto", p.Request.Proto,
		"status", p.StatusCode,
		"size", p.Size,
		"elapsed", time.Since(p.TimeStamp).Round(time.Microsecond),
	)
}

func (d *ObserveDaemon) loggingMiddleware(next http.Handler) http.Handler {
	return ghandlers.CustomLoggingHandler(io.Discard, next, d.writeLog)
}
