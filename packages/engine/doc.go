// Package engine turns a stored request definition plus variable context
// into an outbound HTTP call: it resolves auth and variables, builds the
// wire request, runs pre/post scripts around the transport call, and
// folds every failure mode into the returned ApiResponse. Execute never
// returns an error; callers judge outcomes from the response fields.
package engine
