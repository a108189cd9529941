package id3

// popmOwner is the owner string widely-deployed players use for the
// popularimeter frame, kept for interoperability.
const popmOwner = "Windows Media Player 9 Series"

// ratingToByte maps a 0-10 rating onto the POPM byte convention shared
// by mainstream players. The mapping is piecewise, not linear.
func ratingToByte(rating int) byte {
	switch {
	case rating <= 0:
		return 0
	case rating == 1:
		return 1
	case rating == 2:
		return 64
	case rating == 3:
		return 96
	case rating == 4:
		return 128
	case rating == 5:
		return 160
	case rating == 6:
		return 196
	case rating == 7:
		return 208
	case rating == 8:
		return 224
	case rating == 9:
		return 240
	default:
		return 255
	}
}

// byteToRating inverts ratingToByte. Bucket bounds are inclusive so
// every value the writer emits reads back to the same 0-10 rating.
func byteToRating(b byte) int {
	switch {
	case b == 0:
		return 0
	case b < 8:
		return 1
	case b <= 64:
		return 2
	case b <= 96:
		return 3
	case b <= 128:
		return 4
	case b <= 160:
		return 5
	case b <= 196:
		return 6
	case b <= 208:
		return 7
	case b <= 224:
		return 8
	case b <= 240:
		return 9
	default:
		return 10
	}
}
