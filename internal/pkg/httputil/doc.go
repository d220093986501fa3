// Package httputil holds the JSON response helpers shared by the health and
// metrics endpoints, so every response has the same envelope.
package httputil
