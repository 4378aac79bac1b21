package permute

// sbox is a permutation of 0..255 generated with the Feistel permutor.
var sbox = [256]byte{
	0xb6, 0xb8, 0x4b, 0x82, 0xb7, 0x63, 0xba, 0x8b,
	0x02, 0x8c, 0xea, 0x91, 0x75, 0xa7, 0xec, 0x5e,
	0x58, 0xee, 0x6b, 0xf2, 0xcc, 0x2d, 0x7c, 0x1f,
	0xad, 0x33, 0x98, 0x2c, 0x9b, 0x54, 0xed, 0x4c,
	0xc7, 0x0f, 0x68, 0x17, 0xd8, 0xe5, 0xd7, 0x04,
	0xcb, 0xbe, 0x36, 0xff, 0xb9, 0x41, 0xd6, 0xe0,
	0xdb, 0xf3, 0x5b, 0x09, 0x62, 0x48, 0x18, 0xa0,
	0x8d, 0x03, 0x6d, 0x29, 0x94, 0xe7, 0xc4, 0x69,
	0x21, 0x1a, 0xda, 0x8e, 0x5c, 0xe1, 0xc8, 0x2e,
	0x80, 0x72, 0x0e, 0x22, 0x56, 0x9c, 0xc2, 0x28,
	0x84, 0x39, 0x5f, 0xfc, 0x59, 0xaa, 0xfd, 0x49,
	0x81, 0xfe, 0x01, 0x19, 0xca, 0x3f, 0xac, 0x6e,
	0xd2, 0x45, 0xb2, 0x96, 0xa4, 0x26, 0xce, 0xde,
	0x86, 0xbf, 0xdd, 0xaf, 0x83, 0xc9, 0xd9, 0x8a,
	0xbc, 0x14, 0x60, 0x2a, 0x06, 0xf9, 0x6f, 0xe4,
	0xd1, 0x3b, 0x90, 0xcd, 0xa3, 0x2b, 0xf1, 0x15,
	0x61, 0x3e, 0xdf, 0xf0, 0x7b, 0xbb, 0x00, 0x3d,
	0x95, 0x34, 0xc0, 0x57, 0xc5, 0x78, 0xfb, 0x87,
	0x97, 0x65, 0x31, 0xfa, 0xd5, 0x7d, 0xb3, 0xa1,
	0xb1, 0x66, 0x88, 0x44, 0x37, 0x9d, 0x11, 0x7f,
	0xae, 0xe6, 0x76, 0x42, 0xe3, 0x2f, 0xab, 0x16,
	0x73, 0xc3, 0x05, 0xf7, 0x70, 0xc1, 0x0d, 0x74,
	0x27, 0x08, 0x38, 0xf4, 0x4f, 0xa8, 0x8f, 0xf5,
	0xb5, 0x4d, 0x67, 0xdc, 0x3c, 0x20, 0xa5, 0x23,
	0x53, 0x0c, 0x89, 0x30, 0x55, 0x4e, 0x6a, 0x71,
	0x35, 0xd3, 0x6c, 0x51, 0x9e, 0x0b, 0x0a, 0x13,
	0x24, 0x4a, 0xa6, 0xbd, 0x43, 0x93, 0xef, 0xcf,
	0xa9, 0x1d, 0x5a, 0x9f, 0x64, 0xf6, 0x07, 0x25,
	0x32, 0xb0, 0xe8, 0x7e, 0x46, 0xb4, 0x47, 0xd4,
	0x99, 0xeb, 0x77, 0x5d, 0x7a, 0xe2, 0x92, 0x52,
	0x12, 0x3a, 0x1e, 0xd0, 0x10, 0x85, 0x79, 0xe9,
	0xc6, 0x40, 0x1c, 0x1b, 0xa2, 0x9a, 0xf8, 0x50,
}

// Shuffle8 permutes the low 8 bits of i under seed. For a fixed seed it is a
// bijection over the low byte, which makes it usable as a sort key for
// shuffling small rrsets without materializing them.
func Shuffle8(i uint16, seed uint32) uint16 {
	return (0xff00 & i) | uint16(sbox[(seed+uint32(i&0x00ff))%uint32(len(sbox))])
}
