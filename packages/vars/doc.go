// Package vars resolves <<name>> tokens against a layered variable scope
// built from collection-scoped and environment-scoped variables, with
// the environment winning on duplicate keys.
package vars
