// Package platform contains OS/platform integration: default library and
// cache locations, filesystem helpers for local galleries, and OS open/reveal.
package platform
