// Package collection defines the request tree model: collections own
// folders, requests and collection-scoped variables, folders nest
// recursively, and every node may carry its own auth configuration.
// Flatten linearizes the tree into the deterministic order a run uses.
package collection
