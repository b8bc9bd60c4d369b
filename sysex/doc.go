// Package sysex implements the wire layer shared by every exchange with the
// device: the 7-bit block codec that makes arbitrary bytes transport-safe,
// the frame envelope, and the build/parse pairs for the handshake and
// custom-mode message families. Everything here is pure byte manipulation;
// ports and timing live one layer up.
package sysex
