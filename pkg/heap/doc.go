// Package heap implements the Heap Buffer and Tuple Pointer (spec §4.E): a
// small-integer-addressed buffer table, pages holding a tuple slot
// directory of Go-native tuples, and the 64-bit heap tuple pointer (HTP) that
// names one slot in one page of one buffer.
package heap
