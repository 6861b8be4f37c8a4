// Package fixtures provides canned entity documents, contracts, and
// transformers for the student entity type used throughout the tests.
package fixtures
