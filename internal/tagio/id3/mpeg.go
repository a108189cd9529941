package id3

import (
	"encoding/binary"
	"os"

	"attune/internal/media"
)

// MPEG1 Layer III bitrate table in kbit/s and MPEG1 sample rates.
var (
	bitrateTable    = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}
	bitrateTableV2  = [16]int{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0}
	sampleRateTable = [4]int{44100, 48000, 32000, 0}
)

// readAudioProps fills bitrate, sample rate, channel count, and duration
// from the first MPEG frame after the tag. Failure leaves the fields
// zero; metadata extraction does not depend on it.
func readAudioProps(f *os.File, tagSize, fileSize int64, td *media.TagData) {
	const searchLimit = 64 * 1024

	offset := tagSize
	limit := tagSize + searchLimit
	if limit > fileSize-4 {
		limit = fileSize - 4
	}
	buf := make([]byte, 4)
	for ; offset < limit; offset++ {
		if _, err := f.ReadAt(buf, offset); err != nil {
			return
		}
		header := binary.BigEndian.Uint32(buf)
		bitrate, sampleRate, channels, ok := parseFrameHeader(header)
		if !ok {
			continue
		}
		td.Bitrate = bitrate
		td.SampleRate = sampleRate
		td.Channels = channels

		if frames, ok := xingFrameCount(f, offset); ok {
			// VBR: duration from frame count, 1152 samples per frame.
			td.Duration = int(int64(frames) * 1152 / int64(sampleRate))
		} else if bitrate > 0 {
			td.Duration = int((fileSize - tagSize) * 8 / int64(bitrate) / 1000)
		}
		return
	}
}

func parseFrameHeader(header uint32) (bitrate, sampleRate, channels int, ok bool) {
	if header&0xFFE00000 != 0xFFE00000 {
		return 0, 0, 0, false
	}
	version := header >> 19 & 0x3 // 3 = MPEG1, 2 = MPEG2
	layer := header >> 17 & 0x3   // 1 = Layer III
	if (version != 3 && version != 2) || layer != 1 {
		return 0, 0, 0, false
	}

	bitrateIdx := header >> 12 & 0xF
	if version == 3 {
		bitrate = bitrateTable[bitrateIdx]
	} else {
		bitrate = bitrateTableV2[bitrateIdx]
	}
	sampleRateIdx := header >> 10 & 0x3
	sampleRate = sampleRateTable[sampleRateIdx]
	if version == 2 {
		sampleRate /= 2
	}
	if bitrate == 0 || sampleRate == 0 {
		return 0, 0, 0, false
	}
	if header>>6&0x3 == 3 {
		channels = 1
	} else {
		channels = 2
	}
	return bitrate, sampleRate, channels, true
}

// xingFrameCount reads the frame count from a Xing/Info header when the
// first frame carries one.
func xingFrameCount(f *os.File, frameOffset int64) (int, bool) {
	// MPEG1 stereo side-info offset.
	buf := make([]byte, 12)
	if _, err := f.ReadAt(buf, frameOffset+36); err != nil {
		return 0, false
	}
	marker := string(buf[0:4])
	if marker != "Xing" && marker != "Info" {
		return 0, false
	}
	flags := binary.BigEndian.Uint32(buf[4:8])
	if flags&0x1 == 0 {
		return 0, false
	}
	frames := binary.BigEndian.Uint32(buf[8:12])
	return int(frames), frames > 0
}
