package id3

import (
	"bytes"
	"unicode/utf16"
)

// Text encodings defined by ID3v2. Encodings 2 and 3 are v2.4 only but
// tolerated when reading v2.3 files written by sloppy taggers.
const (
	encLatin1  = 0
	encUTF16   = 1
	encUTF16BE = 2
	encUTF8    = 3
)

func decodeText(data []byte, encoding byte) string {
	if len(data) == 0 {
		return ""
	}
	switch encoding {
	case encUTF16:
		return decodeUTF16BOM(data)
	case encUTF16BE:
		return decodeUTF16Pairs(data, false)
	case encUTF8, encLatin1:
		return decodeLatin1OrUTF8(data, encoding)
	default:
		return string(data)
	}
}

func decodeLatin1OrUTF8(data []byte, encoding byte) string {
	if encoding == encUTF8 {
		return string(data)
	}
	// Latin-1 bytes map 1:1 onto the first 256 code points.
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

func decodeUTF16BOM(data []byte) string {
	if len(data) >= 2 {
		if data[0] == 0xFF && data[1] == 0xFE {
			return decodeUTF16Pairs(data[2:], true)
		}
		if data[0] == 0xFE && data[1] == 0xFF {
			return decodeUTF16Pairs(data[2:], false)
		}
	}
	return decodeUTF16Pairs(data, false)
}

func decodeUTF16Pairs(data []byte, littleEndian bool) string {
	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}
	u16 := make([]uint16, len(data)/2)
	for i := range u16 {
		if littleEndian {
			u16[i] = uint16(data[i*2]) | uint16(data[i*2+1])<<8
		} else {
			u16[i] = uint16(data[i*2])<<8 | uint16(data[i*2+1])
		}
	}
	return string(utf16.Decode(u16))
}

// indexTerminator locates the encoding-appropriate null terminator.
func indexTerminator(data []byte, encoding byte) int {
	switch encoding {
	case encUTF16, encUTF16BE:
		for i := 0; i+1 < len(data); i += 2 {
			if data[i] == 0 && data[i+1] == 0 {
				return i
			}
		}
		return -1
	default:
		return bytes.IndexByte(data, 0)
	}
}

func terminatorLen(encoding byte) int {
	if encoding == encUTF16 || encoding == encUTF16BE {
		return 2
	}
	return 1
}
