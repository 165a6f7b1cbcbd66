// Package transcode coordinates the full pipeline for one upload: probe the
// source, fan out one encode job per ladder variant, aggregate the results in
// catalog order, publish the master playlist on full success, and delete the
// uploaded source only once every rendition landed.
//
// A run registry keyed by output root rejects a second upload that would
// write into a directory an active run is still producing.
package transcode
