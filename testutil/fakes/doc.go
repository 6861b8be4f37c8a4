// Package fakes provides in-memory fakes of the entitycache collaborator
// interfaces: a fetch primitive serving canned documents and a reactive store
// backed by a plain map.
package fakes
