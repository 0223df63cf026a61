// Package httpclient is the HTTP transport collaborator: it sends
// wire-ready requests with a bounded timeout and maps network failures
// to a stable error taxonomy (dns, connection refused, reset, timeout,
// tls) instead of surfacing raw platform errors.
package httpclient
