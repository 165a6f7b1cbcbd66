// Command hlspress is the operator CLI: configuration utilities, run history
// inspection, and a daemon health check. The daemon itself is hlspressd.
package main
