package flac

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"

	"attune/internal/fileutil"
	"attune/internal/media"
)

const vendorString = "attune"

// WriteTags rewrites the Vorbis comment block from td. Comments with
// keys this package does not manage are preserved; empty managed values
// remove their comments. STREAMINFO and PICTURE blocks pass through
// untouched.
func WriteTags(path string, td media.TagData) error {
	return rewrite(path, func(blocks []block) []block {
		var preserved []comment
		kept := blocks[:0]
		for _, b := range blocks {
			if b.kind != blockVorbisComment {
				kept = append(kept, b)
				continue
			}
			for _, c := range parseComments(b.data) {
				if !managedKeys[c.key] {
					preserved = append(preserved, c)
				}
			}
		}
		comments := append(buildComments(td), preserved...)
		return append(kept, block{kind: blockVorbisComment, data: encodeComments(comments)})
	})
}

// WriteCover replaces all PICTURE blocks with a single front cover.
func WriteCover(path string, cover media.CoverBlob) error {
	if cover.MIME != "image/png" && cover.MIME != "image/jpeg" {
		return fmt.Errorf("flac: unsupported cover type %q", cover.MIME)
	}
	return rewrite(path, func(blocks []block) []block {
		kept := dropBlocks(blocks, blockPicture)
		return append(kept, block{kind: blockPicture, data: encodePicture(cover)})
	})
}

// RemoveCover removes every PICTURE block, even when multiple exist.
func RemoveCover(path string) error {
	return rewrite(path, func(blocks []block) []block {
		return dropBlocks(blocks, blockPicture)
	})
}

// ReadCover returns the first PICTURE block's image, preferring the
// front cover type when several are present.
func ReadCover(path string) (media.CoverBlob, error) {
	f, err := os.Open(path)
	if err != nil {
		return media.CoverBlob{}, fmt.Errorf("open flac: %w", err)
	}
	defer f.Close()

	st, err := parseStream(f)
	if err != nil {
		return media.CoverBlob{}, err
	}
	var fallback media.CoverBlob
	for _, b := range st.blocks {
		if b.kind != blockPicture {
			continue
		}
		blob, picType, ok := parsePicture(b.data)
		if !ok {
			continue
		}
		if picType == pictureFrontCover {
			return blob, nil
		}
		if fallback.Data == nil {
			fallback = blob
		}
	}
	return fallback, nil
}

// managedKeys covers every key Read maps onto TagData, alias spellings
// included. A rewrite must strip the aliases too: a preserved alias
// would sort after the canonical comment and shadow it on the next read.
var managedKeys = map[string]bool{
	keyTitle: true, keyArtist: true, keyAlbum: true, keyAlbumArtist: true,
	keyComposer: true, keyGenre: true, keyComment: true, keyDate: true,
	keyTrack: true, keyTrackTotal: true, keyDisc: true, keyDiscTotal: true,
	keyRating: true, keyMBAlbumID: true, keyMBArtistID: true,
	keyMBTrackID: true, keyAcoustID: true, keyAcoustIDFp: true,
	"ALBUM ARTIST": true, "YEAR": true, "DESCRIPTION": true,
	"TOTALTRACKS": true, "TOTALDISCS": true,
}

func buildComments(td media.TagData) []comment {
	var out []comment
	add := func(key, value string) {
		if value != "" {
			out = append(out, comment{key: key, value: value})
		}
	}
	addInt := func(key string, value int) {
		if value > 0 {
			add(key, strconv.Itoa(value))
		}
	}

	add(keyTitle, td.Title)
	add(keyArtist, td.Artist)
	add(keyAlbum, td.Album)
	add(keyAlbumArtist, td.AlbumArtist)
	add(keyComposer, td.Composer)
	add(keyGenre, td.Genre)
	add(keyComment, td.Comment)
	addInt(keyDate, td.Year)
	addInt(keyTrack, td.Track)
	addInt(keyTrackTotal, td.TrackTotal)
	addInt(keyDisc, td.Disc)
	addInt(keyDiscTotal, td.DiscTotal)
	addInt(keyRating, td.Rating)
	add(keyMBAlbumID, td.MBAlbumID)
	add(keyMBArtistID, td.MBArtistID)
	add(keyMBTrackID, td.MBTrackID)
	add(keyAcoustID, td.AcoustID)
	add(keyAcoustIDFp, td.AcoustIDFp)
	return out
}

func encodeComments(comments []comment) []byte {
	var buf bytes.Buffer
	writeU32 := func(v uint32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		buf.Write(b[:])
	}
	writeU32(uint32(len(vendorString)))
	buf.WriteString(vendorString)
	writeU32(uint32(len(comments)))
	for _, c := range comments {
		entry := c.key + "=" + c.value
		writeU32(uint32(len(entry)))
		buf.WriteString(entry)
	}
	return buf.Bytes()
}

// encodePicture builds a PICTURE block: type, MIME, description, then
// width/height/depth/colors (all zero when unknown) and the image bytes.
func encodePicture(cover media.CoverBlob) []byte {
	var buf bytes.Buffer
	writeU32 := func(v uint32) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], v)
		buf.Write(b[:])
	}
	writeU32(pictureFrontCover)
	writeU32(uint32(len(cover.MIME)))
	buf.WriteString(cover.MIME)
	writeU32(0) // description
	writeU32(0) // width
	writeU32(0) // height
	writeU32(0) // depth
	writeU32(0) // colors
	writeU32(uint32(len(cover.Data)))
	buf.Write(cover.Data)
	return buf.Bytes()
}

func parsePicture(data []byte) (media.CoverBlob, int, bool) {
	if len(data) < 32 {
		return media.CoverBlob{}, 0, false
	}
	picType := int(binary.BigEndian.Uint32(data[0:4]))
	pos := 4
	mimeLen := int(binary.BigEndian.Uint32(data[pos : pos+4]))
	pos += 4
	if pos+mimeLen > len(data) {
		return media.CoverBlob{}, 0, false
	}
	mime := string(data[pos : pos+mimeLen])
	pos += mimeLen
	if pos+4 > len(data) {
		return media.CoverBlob{}, 0, false
	}
	descLen := int(binary.BigEndian.Uint32(data[pos : pos+4]))
	pos += 4 + descLen
	pos += 16 // width, height, depth, colors
	if pos+4 > len(data) {
		return media.CoverBlob{}, 0, false
	}
	imgLen := int(binary.BigEndian.Uint32(data[pos : pos+4]))
	pos += 4
	if pos+imgLen > len(data) {
		return media.CoverBlob{}, 0, false
	}
	blob := media.CoverBlob{Data: append([]byte(nil), data[pos:pos+imgLen]...), MIME: mime}
	if sniffed := media.SniffMIME(blob.Data); sniffed != "" {
		blob.MIME = sniffed
	}
	return blob, picType, true
}

func dropBlocks(blocks []block, kind byte) []block {
	kept := blocks[:0]
	for _, b := range blocks {
		if b.kind != kind {
			kept = append(kept, b)
		}
	}
	return kept
}

// rewrite rebuilds the metadata section through transform and
// atomically replaces the file, copying audio frames unchanged.
func rewrite(path string, transform func([]block) []block) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open flac: %w", err)
	}
	defer f.Close()

	st, err := parseStream(f)
	if err != nil {
		return err
	}
	blocks := transform(st.blocks)
	if len(blocks) == 0 || blocks[0].kind != blockStreamInfo {
		return fmt.Errorf("flac: refusing to write without streaminfo block")
	}

	return fileutil.ReplaceFileAtomic(path, func(dst *os.File) error {
		if _, err := dst.Write([]byte("fLaC")); err != nil {
			return fmt.Errorf("write magic: %w", err)
		}
		for i, b := range blocks {
			header := make([]byte, 4)
			header[0] = b.kind
			if i == len(blocks)-1 {
				header[0] |= 0x80
			}
			header[1] = byte(len(b.data) >> 16)
			header[2] = byte(len(b.data) >> 8)
			header[3] = byte(len(b.data))
			if _, err := dst.Write(header); err != nil {
				return fmt.Errorf("write block header: %w", err)
			}
			if _, err := dst.Write(b.data); err != nil {
				return fmt.Errorf("write block data: %w", err)
			}
		}
		if _, err := f.Seek(st.audioStart, io.SeekStart); err != nil {
			return fmt.Errorf("seek audio frames: %w", err)
		}
		if _, err := io.Copy(dst, f); err != nil {
			return fmt.Errorf("copy audio frames: %w", err)
		}
		return nil
	})
}
