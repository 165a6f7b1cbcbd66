// Package hls holds the rendition ladder data model and master playlist
// assembly.
//
// A Variant describes one target rendition. The ladder order is authoritative:
// the master playlist lists variants in ladder order regardless of which
// encode finishes first.
package hls
