// Package cache stores synthesized speech so repeated sentences are not sent
// to an engine twice. A bounded in-memory LRU sits in front of a compressed
// disk cache that persists between runs.
package cache
