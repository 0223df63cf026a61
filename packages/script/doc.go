// Package script executes user-authored pre-request and post-response
// scripts in an isolated interpreter. Each call gets a fresh VM exposing
// exactly two capabilities, console and environment, plus a read-only
// response view for post scripts. There is no ambient filesystem or
// network access.
package script
