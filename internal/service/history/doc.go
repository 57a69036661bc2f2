// Package history prints recent detection episodes from the local store.
package history
