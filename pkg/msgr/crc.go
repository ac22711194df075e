package msgr

import "hash/crc32"

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// crc32cExtend computes the CRC32C (Castagnoli) of data starting from
// accumulator crc, matching the reference crc32c_extend primitive used
// throughout msgr2.
func crc32cExtend(crc uint32, data []byte) uint32 {
	return crc32.Update(crc, castagnoliTable, data)
}

// preambleCRC is the frame preamble's checksum: the final one's
// complement of crc32c_extend(0xFFFFFFFF, ·) over the first 28
// preamble bytes. Note the complement — this differs from plaintext
// segment CRCs below.
func preambleCRC(first28 []byte) uint32 {
	return ^crc32cExtend(0xFFFFFFFF, first28)
}

// segmentCRC is a plaintext segment's checksum: crc32c_extend with no
// final complement.
func segmentCRC(data []byte) uint32 {
	return crc32cExtend(0xFFFFFFFF, data)
}
