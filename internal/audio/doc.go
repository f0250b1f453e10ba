// Package audio decodes the fixed-format mono PCM-16 waveforms produced by
// the transcoder and encodes test fixtures in the same layout.
package audio
