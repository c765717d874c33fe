// Package mtp implements the message transfer protocol of MAX1187x touch
// controllers.
package mtp

// The controller exposes a tiny register window over a byte oriented bus
// (usually I2C). All traffic is made of 16-bit little-endian words.
//
// Commands are written to address 0x0000 in packets of at most 9 words,
// each packet prefixed by a header word:
//
//	(total_packets << 12) | (packet_number << 8) | packet_words
//
// Reports are read from address 0x000A. The first word of a report packet
// carries (total_packets << 4 | packet_number) in the high byte and the
// number of following words in the low byte. Most reports fit in a single
// packet (high byte 0x11); raw touch images span multiple packets and are
// combined by Reassembler.
//
// Completed reports are fanned out by Hub to a fixed number of Readers and
// to the Correlator, which pairs a command with the report answering it.
