package audio

import "bytes"

const (
	id3v2HeaderSize = 10
	id3v1TagSize    = 128
)

// JoinMP3 склеивает несколько MP3-потоков в один.
// MP3 состоит из независимых фреймов, поэтому достаточно убрать метаданные на стыках:
// ID3v2-заголовок остаётся только у первой части, ID3v1-трейлер — только у последней.
func JoinMP3(parts ...[]byte) []byte {
	size := 0
	for _, p := range parts {
		size += len(p)
	}
	out := make([]byte, 0, size)
	for i, p := range parts {
		if i > 0 {
			p = stripID3v2(p)
		}
		if i < len(parts)-1 {
			p = stripID3v1(p)
		}
		out = append(out, p...)
	}
	return out
}

// stripID3v2 убирает ведущий ID3v2-тег (и футер, если он объявлен флагом).
func stripID3v2(b []byte) []byte {
	if len(b) < id3v2HeaderSize || !bytes.HasPrefix(b, []byte("ID3")) {
		return b
	}
	// размер — synchsafe integer: по 7 бит в каждом из 4 байтов
	sz := int(b[6]&0x7f)<<21 | int(b[7]&0x7f)<<14 | int(b[8]&0x7f)<<7 | int(b[9]&0x7f)
	total := id3v2HeaderSize + sz
	if b[5]&0x10 != 0 {
		total += id3v2HeaderSize
	}
	if total > len(b) {
		return b
	}
	return b[total:]
}

func stripID3v1(b []byte) []byte {
	if len(b) < id3v1TagSize {
		return b
	}
	tail := b[len(b)-id3v1TagSize:]
	if !bytes.HasPrefix(tail, []byte("TAG")) {
		return b
	}
	return b[:len(b)-id3v1TagSize]
}
