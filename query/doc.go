// Package query answers text or vector queries against named vector indexes
// and joins every hit with its full source document.
package query
