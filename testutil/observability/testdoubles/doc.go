// Package testdoubles provides spy implementations of the entitycache
// observability interfaces for asserting on log, metric, and trace output
// in tests without a real backend.
package testdoubles
