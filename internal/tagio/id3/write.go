package id3

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"

	"attune/internal/fileutil"
	"attune/internal/media"
)

// paddingSize is appended after the last frame so small future edits
// can grow in place under other tools.
const paddingSize = 1024

// managedFrames are rebuilt from TagData on every write; everything
// else found in the existing tag is carried over verbatim.
var managedFrames = map[string]bool{
	"TIT2": true, "TPE1": true, "TALB": true, "TPE2": true,
	"TCOM": true, "TCON": true, "TYER": true, "TDRC": true,
	"TRCK": true, "TPOS": true, "COMM": true, "POPM": true,
}

// WriteTags rewrites the file's ID3v2 tag from td, preserving frames it
// does not manage (including attached pictures). Empty identifier values
// remove their TXXX frames rather than writing empty strings.
func WriteTags(path string, td media.TagData) error {
	return rewrite(path, func(frames []frame) []frame {
		kept := frames[:0]
		for _, fr := range frames {
			if managedFrames[fr.id] {
				continue
			}
			if fr.id == "TXXX" {
				if desc, _ := userText(fr.data); isManagedDescription(desc) {
					continue
				}
			}
			kept = append(kept, fr)
		}
		return append(buildFrames(td), kept...)
	})
}

// WriteCover replaces all attached-picture frames with a single one.
func WriteCover(path string, cover media.CoverBlob) error {
	if cover.MIME != "image/png" && cover.MIME != "image/jpeg" {
		return fmt.Errorf("id3: unsupported cover type %q", cover.MIME)
	}
	return rewrite(path, func(frames []frame) []frame {
		kept := dropFrames(frames, "APIC")
		return append(kept, buildPictureFrame(cover))
	})
}

// RemoveCover removes every attached-picture frame, even when multiple
// exist.
func RemoveCover(path string) error {
	return rewrite(path, func(frames []frame) []frame {
		return dropFrames(frames, "APIC")
	})
}

// ReadCover returns the first attached picture in the file.
func ReadCover(path string) (media.CoverBlob, error) {
	f, err := os.Open(path)
	if err != nil {
		return media.CoverBlob{}, fmt.Errorf("open mp3: %w", err)
	}
	defer f.Close()

	t, err := parseTag(f)
	if err != nil {
		return media.CoverBlob{}, err
	}
	for _, fr := range t.frames {
		if fr.id != "APIC" {
			continue
		}
		if blob, ok := parsePictureFrame(fr.data); ok {
			return blob, nil
		}
	}
	return media.CoverBlob{}, nil
}

// rewrite rebuilds the tag through transform and atomically replaces
// the file, copying the audio payload unchanged.
func rewrite(path string, transform func([]frame) []frame) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open mp3: %w", err)
	}
	defer f.Close()

	t, err := parseTag(f)
	if err != nil {
		return err
	}
	frames := transform(t.frames)

	var body bytes.Buffer
	for _, fr := range frames {
		body.WriteString(fr.id)
		body.Write(encodeSynchsafe(uint32(len(fr.data))))
		body.Write([]byte{0, 0})
		body.Write(fr.data)
	}
	body.Write(make([]byte, paddingSize))

	header := make([]byte, 0, headerSize)
	header = append(header, 'I', 'D', '3', 4, 0, 0)
	header = append(header, encodeSynchsafe(uint32(body.Len()))...)

	return fileutil.ReplaceFileAtomic(path, func(dst *os.File) error {
		if _, err := dst.Write(header); err != nil {
			return fmt.Errorf("write tag header: %w", err)
		}
		if _, err := dst.Write(body.Bytes()); err != nil {
			return fmt.Errorf("write tag body: %w", err)
		}
		if _, err := f.Seek(t.size, io.SeekStart); err != nil {
			return fmt.Errorf("seek audio data: %w", err)
		}
		if _, err := io.Copy(dst, f); err != nil {
			return fmt.Errorf("copy audio data: %w", err)
		}
		return nil
	})
}

func buildFrames(td media.TagData) []frame {
	var frames []frame
	add := func(id, value string) {
		if value == "" {
			return
		}
		data := append([]byte{encUTF8}, value...)
		frames = append(frames, frame{id: id, data: data})
	}

	add("TIT2", td.Title)
	add("TPE1", td.Artist)
	add("TALB", td.Album)
	add("TPE2", td.AlbumArtist)
	add("TCOM", td.Composer)
	add("TCON", td.Genre)
	if td.Year > 0 {
		add("TDRC", strconv.Itoa(td.Year))
	}
	add("TRCK", pairText(td.Track, td.TrackTotal))
	add("TPOS", pairText(td.Disc, td.DiscTotal))

	if td.Comment != "" {
		data := []byte{encUTF8, 'e', 'n', 'g', 0}
		data = append(data, td.Comment...)
		frames = append(frames, frame{id: "COMM", data: data})
	}

	addUser := func(desc, value string) {
		if value == "" {
			return
		}
		data := []byte{encUTF8}
		data = append(data, desc...)
		data = append(data, 0)
		data = append(data, value...)
		frames = append(frames, frame{id: "TXXX", data: data})
	}
	addUser(descMBAlbumID, td.MBAlbumID)
	addUser(descMBArtistID, td.MBArtistID)
	addUser(descMBTrackID, td.MBTrackID)
	addUser(descAcoustID, td.AcoustID)
	addUser(descAcoustIDFp, td.AcoustIDFp)

	if td.Rating > 0 {
		data := append([]byte(popmOwner), 0, ratingToByte(td.Rating))
		data = append(data, 0, 0, 0, 0) // play counter
		frames = append(frames, frame{id: "POPM", data: data})
	}
	return frames
}

func isManagedDescription(desc string) bool {
	switch desc {
	case descMBAlbumID, descMBArtistID, descMBTrackID, descAcoustID, descAcoustIDFp:
		return true
	}
	return false
}

func pairText(number, total int) string {
	if number <= 0 {
		return ""
	}
	if total > 0 {
		return strconv.Itoa(number) + "/" + strconv.Itoa(total)
	}
	return strconv.Itoa(number)
}

func dropFrames(frames []frame, id string) []frame {
	kept := frames[:0]
	for _, fr := range frames {
		if fr.id != id {
			kept = append(kept, fr)
		}
	}
	return kept
}

// buildPictureFrame encodes an APIC frame: encoding, MIME\0, picture
// type (3 = front cover), description\0, image bytes.
func buildPictureFrame(cover media.CoverBlob) frame {
	data := []byte{encLatin1}
	data = append(data, cover.MIME...)
	data = append(data, 0, 3, 0)
	data = append(data, cover.Data...)
	return frame{id: "APIC", data: data}
}

func parsePictureFrame(data []byte) (media.CoverBlob, bool) {
	if len(data) < 4 {
		return media.CoverBlob{}, false
	}
	encoding := data[0]
	rest := data[1:]
	mimeEnd := bytes.IndexByte(rest, 0)
	if mimeEnd < 0 {
		return media.CoverBlob{}, false
	}
	mime := string(rest[:mimeEnd])
	rest = rest[mimeEnd+1:]
	if len(rest) < 1 {
		return media.CoverBlob{}, false
	}
	rest = rest[1:] // picture type
	descEnd := indexTerminator(rest, encoding)
	if descEnd < 0 {
		return media.CoverBlob{}, false
	}
	image := rest[descEnd+terminatorLen(encoding):]
	if len(image) == 0 {
		return media.CoverBlob{}, false
	}
	blob := media.CoverBlob{Data: append([]byte(nil), image...), MIME: mime}
	if sniffed := media.SniffMIME(blob.Data); sniffed != "" {
		blob.MIME = sniffed
	}
	return blob, true
}
