// Package store loads collection and environment documents from YAML
// and holds the live environment variable store that scripts write
// through to. The environment store can watch its backing file and
// reload on change.
package store
