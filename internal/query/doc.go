// Package query derives filtered and sorted views of a deal collection.
//
// Every function here is pure: inputs are never modified and results are
// freshly allocated, so independent views can query the same snapshot
// concurrently without coordination.
package query
