// Package httputil holds the JSON response helpers and request parameter
// parsing shared by the API handlers.
package httputil
