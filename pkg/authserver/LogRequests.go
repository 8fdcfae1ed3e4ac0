package authserver

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// statusRecorder captures the status and size of a response
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.size += n
	return n, err
}

// LogRequests is a middleware that logs each request in the Apache combined log format
// followed by the response time.
func LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(resp http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: resp, status: http.StatusOK}
		next.ServeHTTP(rec, req)

		logrus.Infof(`%s - - [%s] "%s %s %s" %d %d %.3f ms "%s" "%s"`,
			req.RemoteAddr, start.Format("02/Jan/2006:15:04:05 -0700"),
			req.Method, req.RequestURI, req.Proto, rec.status, rec.size,
			float64(time.Since(start).Microseconds())/1000, req.Referer(), req.UserAgent())
	})
}
