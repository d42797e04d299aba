package params

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the web app the client talks to when none is configured.
var DefaultBaseURL = "http://localhost:8000"

// Names the web app's anti-forgery machinery uses.
const (
	CSRFCookieName = "csrftoken"
	CSRFHeaderName = "X-CSRFToken"
	CSRFFormField  = "csrfmiddlewaretoken"
)

// SessionFieldName is the form field carrying the session (trip) identifier.
// The server reads trip_id; override it for servers that call it something else.
var SessionFieldName = "trip_id"

// DefaultHTTPTimeout bounds a single dispatch round trip.
var DefaultHTTPTimeout = 10 * time.Second

// TripUpdatePath is where a trip's location updates are posted.
func TripUpdatePath(tripID string) string {
	return fmt.Sprintf("/drivers/trips/%s/location/update/", url.PathEscape(tripID))
}

// ShareLocationPath is where a one-shot rental location share is submitted.
func ShareLocationPath(bookingID string) string {
	return fmt.Sprintf("/mainapp/rental/%s/share-location/", url.PathEscape(bookingID))
}

// JoinURL joins a base URL and an absolute path, tolerating a trailing slash on base.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
