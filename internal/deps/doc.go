// Package deps checks that the external binaries buzzbatch shells out to are
// installed before a run starts.
package deps
