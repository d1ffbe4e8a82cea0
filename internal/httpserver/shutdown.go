package httpserver

import "time"

// ShutdownTimeout bounds draining in-flight requests and background preview
// renders once the process is asked to stop.
var ShutdownTimeout = 30 * time.Second
