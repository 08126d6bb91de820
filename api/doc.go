// Package api groups the HTTP surface of the generator service. The
// handlers subpackage holds the request handlers; routing and middleware
// live with the server entry point.
package api
