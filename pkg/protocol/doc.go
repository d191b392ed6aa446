// Package protocol implements the KBST text frame used between the
// satellite and the ground segment.
package protocol

// A frame is a single line of ASCII text:
//
//   KBST;<direction>;<operation>;<group>;<command>;<value>[;<unit>];TSBK
//
// Direction is 0 for ground-to-satellite requests (GET, SET) and 1 for
// satellite-to-ground answers (VAL, ERR, RES, SEQ). It is always derived
// from the operation and never carried independently.
//
// The same text is used on the debug UART, where frames are separated by
// line terminators, and as the payload of LoRa packets, which carry a two
// byte addressing header in front of it.
