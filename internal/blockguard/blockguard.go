// Package blockguard encodes, validates, and navigates the fixed 32-byte
// header and footer that bracket every allocated block, plus the three fill
// patterns used to detect padding overruns, use-after-free, and stale page
// reuse.
//
// Every function here operates on plain []byte views into a zone's backing
// arena; there is no unsafe.Pointer anywhere in this package. Callers own
// bounds-checking the slices they pass in — HeaderSize, FooterSize and the
// Offset helpers exist for exactly that purpose.
package blockguard

import "encoding/binary"

const (
	// HeaderMagic identifies a live AllocBlockHeader ("HEAD").
	HeaderMagic uint32 = 0x48454144
	// FooterMagic identifies a live AllocBlockFooter ("FOOT").
	FooterMagic uint32 = 0x464F4F54

	// PaddingFill is written over the unused tail of a block's last page.
	PaddingFill byte = 0xFE
	// QuarantineFill is written over a block's payload when it is freed.
	QuarantineFill byte = 0xCD
	// ClearedFill is written over a block's pages when it is evicted from
	// quarantine back into the free pool.
	ClearedFill byte = 0x00
)

// HeaderSize and FooterSize are the on-the-wire sizes of Header and Footer:
// 8 little-endian uint32 words each.
const (
	HeaderSize = 32
	FooterSize = 32
)

// Header is the in-memory form of the 32-byte record written at the start
// of every allocated block.
type Header struct {
	Magic         uint32
	RequestedSize uint32
	StartPage     uint16
	PageCount     uint16
	ZoneIndex     uint8
	SequenceNum   uint32
	Checksum      uint32
}

// Footer mirrors Header's cross-validated fields, written immediately after
// the block's payload.
type Footer struct {
	Magic         uint32
	RequestedSize uint32
	StartPage     uint16
	PageCount     uint16
	ZoneIndex     uint8
	SequenceNum   uint32
	Checksum      uint32
}

// layout of both Header and Footer as 8 uint32 words:
//   w0 magic
//   w1 requestedSize
//   w2 startPage(lo16) | pageCount(hi16)
//   w3 zoneIndex (low byte; upper 3 bytes reserved, always zero)
//   w4 sequenceNum
//   w5 reserved2
//   w6 reserved3
//   w7 checksum = w0^w1^w2^w3^w4^w5^w6

func packWord2(startPage, pageCount uint16) uint32 {
	return uint32(startPage) | uint32(pageCount)<<16
}

func unpackWord2(w uint32) (startPage, pageCount uint16) {
	return uint16(w & 0xFFFF), uint16(w >> 16)
}

func checksum(words [7]uint32) uint32 {
	var c uint32
	for _, w := range words {
		c ^= w
	}
	return c
}

func readWords(b []byte) (w [8]uint32) {
	for i := range w {
		w[i] = binary.LittleEndian.Uint32(b[i*4 : i*4+4])
	}
	return w
}

func writeWords(b []byte, w [8]uint32) {
	for i, v := range w {
		binary.LittleEndian.PutUint32(b[i*4:i*4+4], v)
	}
}

// WriteHeader encodes h into dest[:HeaderSize], computing and storing the
// checksum. dest must be at least HeaderSize bytes.
func WriteHeader(dest []byte, requestedSize uint32, startPage, pageCount uint16, zoneIndex uint8, sequenceNum uint32) Header {
	var w [8]uint32
	w[0] = HeaderMagic
	w[1] = requestedSize
	w[2] = packWord2(startPage, pageCount)
	w[3] = uint32(zoneIndex)
	w[4] = sequenceNum
	w[5] = 0
	w[6] = 0
	w[7] = checksum([7]uint32{w[0], w[1], w[2], w[3], w[4], w[5], w[6]})
	writeWords(dest, w)
	return Header{
		Magic:         w[0],
		RequestedSize: requestedSize,
		StartPage:     startPage,
		PageCount:     pageCount,
		ZoneIndex:     zoneIndex,
		SequenceNum:   sequenceNum,
		Checksum:      w[7],
	}
}

// WriteFooter encodes the footer mirroring the same fields as WriteHeader.
func WriteFooter(dest []byte, requestedSize uint32, startPage, pageCount uint16, zoneIndex uint8, sequenceNum uint32) Footer {
	var w [8]uint32
	w[0] = FooterMagic
	w[1] = requestedSize
	w[2] = packWord2(startPage, pageCount)
	w[3] = uint32(zoneIndex)
	w[4] = sequenceNum
	w[5] = 0
	w[6] = 0
	w[7] = checksum([7]uint32{w[0], w[1], w[2], w[3], w[4], w[5], w[6]})
	writeWords(dest, w)
	return Footer{
		Magic:         w[0],
		RequestedSize: requestedSize,
		StartPage:     startPage,
		PageCount:     pageCount,
		ZoneIndex:     zoneIndex,
		SequenceNum:   sequenceNum,
		Checksum:      w[7],
	}
}

// DecodeHeader reads src[:HeaderSize] without validating it.
func DecodeHeader(src []byte) Header {
	w := readWords(src)
	startPage, pageCount := unpackWord2(w[2])
	return Header{
		Magic:         w[0],
		RequestedSize: w[1],
		StartPage:     startPage,
		PageCount:     pageCount,
		ZoneIndex:     uint8(w[3]),
		SequenceNum:   w[4],
		Checksum:      w[7],
	}
}

// DecodeFooter reads src[:FooterSize] without validating it.
func DecodeFooter(src []byte) Footer {
	w := readWords(src)
	startPage, pageCount := unpackWord2(w[2])
	return Footer{
		Magic:         w[0],
		RequestedSize: w[1],
		StartPage:     startPage,
		PageCount:     pageCount,
		ZoneIndex:     uint8(w[3]),
		SequenceNum:   w[4],
		Checksum:      w[7],
	}
}

// ValidateHeader reports whether src[:HeaderSize] carries the header magic
// and a checksum consistent with its own fields.
func ValidateHeader(src []byte) bool {
	w := readWords(src)
	if w[0] != HeaderMagic {
		return false
	}
	return w[7] == checksum([7]uint32{w[0], w[1], w[2], w[3], w[4], w[5], w[6]})
}

// ValidateFooter reports whether src[:FooterSize] carries the footer magic
// and a checksum consistent with its own fields.
func ValidateFooter(src []byte) bool {
	w := readWords(src)
	if w[0] != FooterMagic {
		return false
	}
	return w[7] == checksum([7]uint32{w[0], w[1], w[2], w[3], w[4], w[5], w[6]})
}

// ValidatePair reports whether h and f agree on every field they mirror.
func ValidatePair(h Header, f Footer) bool {
	return h.RequestedSize == f.RequestedSize &&
		h.StartPage == f.StartPage &&
		h.PageCount == f.PageCount &&
		h.ZoneIndex == f.ZoneIndex &&
		h.SequenceNum == f.SequenceNum
}

// FillPadding overwrites dst with PaddingFill.
func FillPadding(dst []byte) { fill(dst, PaddingFill) }

// FillQuarantine overwrites dst with QuarantineFill.
func FillQuarantine(dst []byte) { fill(dst, QuarantineFill) }

// FillCleared overwrites dst with ClearedFill.
func FillCleared(dst []byte) { fill(dst, ClearedFill) }

func fill(dst []byte, pattern byte) {
	for i := range dst {
		dst[i] = pattern
	}
}

// ValidatePadding reports whether every byte of src equals PaddingFill.
func ValidatePadding(src []byte) bool { return validateFill(src, PaddingFill) }

// ValidateQuarantine reports whether every byte of src equals QuarantineFill.
func ValidateQuarantine(src []byte) bool { return validateFill(src, QuarantineFill) }

func validateFill(src []byte, pattern byte) bool {
	for _, b := range src {
		if b != pattern {
			return false
		}
	}
	return true
}

// PayloadOffset is the byte offset of a block's user payload relative to
// the start of its header.
func PayloadOffset() int { return HeaderSize }

// FooterOffset is the byte offset of a block's footer relative to the start
// of its header, given the block's requested size.
func FooterOffset(requestedSize uint32) int {
	return HeaderSize + int(requestedSize)
}

// PaddingOffset is the byte offset of a block's padding relative to the
// start of its header, given the block's requested size.
func PaddingOffset(requestedSize uint32) int {
	return HeaderSize + int(requestedSize) + FooterSize
}

// PaddingSize returns the number of padding bytes trailing a block of the
// given page count and requested size, for a zone using pageSize bytes per
// page. Panics if the block's header+payload+footer would overflow its
// pages, which would indicate a corrupt header.
func PaddingSize(pageSize, pageCount int, requestedSize uint32) int {
	total := pageSize * pageCount
	used := HeaderSize + int(requestedSize) + FooterSize
	if used > total {
		panic("blockguard: block does not fit its pages")
	}
	return total - used
}
