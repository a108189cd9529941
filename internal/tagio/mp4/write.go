package mp4

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

// WriteTags rebuilds the ilst item list from td, preserving items this
// package does not manage. Empty identifier values remove their
// freeform items rather than writing empty strings.
func WriteTags(path string, td media.TagData) error {
	return rewriteItems(path, func(items []item) []item {
		kept := items[:0]
		for _, it := range items {
			if isManagedItem(it) {
				continue
			}
			kept = append(kept, it)
		}
		return append(buildItems(td), kept...)
	})
}

// WriteCover replaces the cover item. Only PNG and JPEG payloads are
// accepted; the data atom type encodes which.
func WriteCover(path string, cover media.CoverBlob) error {
	var dataType uint32
	switch cover.MIME {
	case "image/png":
		dataType = typePNG
	case "image/jpeg":
		dataType = typeJPEG
	default:
		return fmt.Errorf("mp4: unsupported cover type %q", cover.MIME)
	}
	return rewriteItems(path, func(items []item) []item {
		kept := dropItems(items, nameCover)
		return append(kept, item{name: nameCover, dataType: dataType, payload: cover.Data})
	})
}

// RemoveCover removes every cover item.
func RemoveCover(path string) error {
	return rewriteItems(path, func(items []item) []item {
		return dropItems(items, nameCover)
	})
}

// ReadCover returns the embedded cover image, if any.
func ReadCover(path string) (media.CoverBlob, error) {
	f, err := os.Open(path)
	if err != nil {
		return media.CoverBlob{}, fmt.Errorf("open mp4: %w", err)
	}
	defer f.Close()

	moov, err := readTopLevelAtom(f, "moov")
	if err != nil {
		return media.CoverBlob{}, err
	}
	ilst := findAtomPath(moov, "udta", "meta", "ilst")
	if ilst == nil {
		return media.CoverBlob{}, nil
	}
	for _, it := range parseItems(ilst) {
		if it.name != nameCover || len(it.payload) == 0 {
			continue
		}
		blob := media.CoverBlob{Data: append([]byte(nil), it.payload...)}
		switch it.dataType {
		case typePNG:
			blob.MIME = "image/png"
		case typeJPEG:
			blob.MIME = "image/jpeg"
		}
		if sniffed := media.SniffMIME(blob.Data); sniffed != "" {
			blob.MIME = sniffed
		}
		return blob, nil
	}
	return media.CoverBlob{}, nil
}

func isManagedItem(it item) bool {
	switch it.name {
	case nameTitle, nameArtist, nameAlbum, nameAlbumArtist, nameComposer,
		nameGenre, nameComment, nameDay, nameTrack, nameDisc, nameRating:
		return true
	case nameFreeform:
		if it.mean != freeformMean {
			return false
		}
		switch it.desc {
		case ffMBAlbumID, ffMBArtistID, ffMBTrackID, ffAcoustID, ffAcoustIDFp:
			return true
		}
	}
	return false
}

func buildItems(td media.TagData) []item {
	var items []item
	addText := func(name, value string) {
		if value != "" {
			items = append(items, item{name: name, dataType: typeUTF8, payload: []byte(value)})
		}
	}
	addCounter := func(name string, number, total int) {
		if number <= 0 {
			return
		}
		payload := make([]byte, 8)
		binary.BigEndian.PutUint16(payload[2:4], uint16(number))
		binary.BigEndian.PutUint16(payload[4:6], uint16(total))
		items = append(items, item{name: name, dataType: typeImplicit, payload: payload})
	}
	addFreeform := func(desc, value string) {
		if value != "" {
			items = append(items, item{
				name: nameFreeform, mean: freeformMean, desc: desc,
				dataType: typeUTF8, payload: []byte(value),
			})
		}
	}

	addText(nameTitle, td.Title)
	addText(nameArtist, td.Artist)
	addText(nameAlbum, td.Album)
	addText(nameAlbumArtist, td.AlbumArtist)
	addText(nameComposer, td.Composer)
	addText(nameGenre, td.Genre)
	addText(nameComment, td.Comment)
	if td.Year > 0 {
		addText(nameDay, strconv.Itoa(td.Year))
	}
	addCounter(nameTrack, td.Track, td.TrackTotal)
	addCounter(nameDisc, td.Disc, td.DiscTotal)
	if td.Rating > 0 {
		// Stored as a 0-100 percentage.
		items = append(items, item{name: nameRating, dataType: typeInt, payload: []byte{byte(td.Rating * 10)}})
	}
	addFreeform(ffMBAlbumID, td.MBAlbumID)
	addFreeform(ffMBArtistID, td.MBArtistID)
	addFreeform(ffMBTrackID, td.MBTrackID)
	addFreeform(ffAcoustID, td.AcoustID)
	addFreeform(ffAcoustIDFp, td.AcoustIDFp)
	return items
}

func dropItems(items []item, name string) []item {
	kept := items[:0]
	for _, it := range items {
		if it.name != name {
			kept = append(kept, it)
		}
	}
	return kept
}

// encodeItems serializes items into an ilst body.
func encodeItems(items []item) []byte {
	var buf bytes.Buffer
	for _, it := range items {
		var inner bytes.Buffer
		if it.name == nameFreeform {
			writeAtom(&inner, "mean", append(make([]byte, 4), it.mean...))
			writeAtom(&inner, "name", append(make([]byte, 4), it.desc...))
		}
		data := make([]byte, 8, 8+len(it.payload))
		binary.BigEndian.PutUint32(data[0:4], it.dataType)
		data = append(data, it.payload...)
		writeAtom(&inner, "data", data)
		writeAtom(&buf, it.name, inner.Bytes())
	}
	return buf.Bytes()
}

func writeAtom(buf *bytes.Buffer, name string, body []byte) {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(8+len(body)))
	buf.Write(header[:])
	buf.WriteString(name)
	buf.Write(body)
}

// span locates a child atom within a container body.
type span struct {
	name  string
	start int // offset of the size field within the body
	size  int
}

func childSpans(body []byte) []span {
	var spans []span
	pos := 0
	for pos+8 <= len(body) {
		size := int(binary.BigEndian.Uint32(body[pos : pos+4]))
		if size < 8 || pos+size > len(body) {
			break
		}
		spans = append(spans, span{name: string(body[pos+4 : pos+8]), start: pos, size: size})
		pos += size
	}
	return spans
}

func findSpan(body []byte, name string) (span, bool) {
	for _, s := range childSpans(body) {
		if s.name == name {
			return s, true
		}
	}
	return span{}, false
}

// replaceOrAppendChild splices a rebuilt child atom into a container
// body, appending it when absent.
func replaceOrAppendChild(body []byte, name string, childBody []byte) []byte {
	var atom bytes.Buffer
	writeAtom(&atom, name, childBody)
	if s, ok := findSpan(body, name); ok {
		out := make([]byte, 0, len(body)-s.size+atom.Len())
		out = append(out, body[:s.start]...)
		out = append(out, atom.Bytes()...)
		out = append(out, body[s.start+s.size:]...)
		return out
	}
	return append(append([]byte(nil), body...), atom.Bytes()...)
}

// rebuildMoov replaces the udta>meta>ilst chain inside a moov body,
// creating the intermediate atoms when missing.
func rebuildMoov(moov []byte, ilst []byte) []byte {
	var udtaBody []byte
	if s, ok := findSpan(moov, "udta"); ok {
		udtaBody = moov[s.start+8 : s.start+s.size]
	}

	var metaBody []byte
	if s, ok := findSpan(udtaBody, "meta"); ok {
		metaBody = udtaBody[s.start+8 : s.start+s.size]
	}

	newMetaBody := rebuildMeta(metaBody, ilst)
	newUdtaBody := replaceOrAppendChild(udtaBody, "meta", newMetaBody)
	return replaceOrAppendChild(moov, "udta", newUdtaBody)
}

// rebuildMeta replaces the ilst inside a meta body, preserving the
// version/flags prefix and sibling atoms like hdlr. A fresh meta gets a
// metadata handler atom so other readers accept it.
func rebuildMeta(metaBody []byte, ilst []byte) []byte {
	if len(metaBody) < 4 {
		var buf bytes.Buffer
		buf.Write(make([]byte, 4))
		hdlr := make([]byte, 0, 26)
		hdlr = append(hdlr, make([]byte, 8)...)
		hdlr = append(hdlr, "mdir"...)
		hdlr = append(hdlr, "appl"...)
		hdlr = append(hdlr, make([]byte, 10)...)
		writeAtom(&buf, "hdlr", hdlr)
		writeAtom(&buf, "ilst", ilst)
		return buf.Bytes()
	}
	prefix := metaBody[:4]
	children := replaceOrAppendChild(metaBody[4:], "ilst", ilst)
	return append(append([]byte(nil), prefix...), children...)
}

// containerAtoms are moov descendants walked when fixing chunk offsets.
var containerAtoms = map[string]bool{
	"trak": true, "mdia": true, "minf": true, "stbl": true, "edts": true,
}

// shiftChunkOffsets adjusts stco/co64 entries in place by delta.
func shiftChunkOffsets(body []byte, delta int64) {
	for _, s := range childSpans(body) {
		child := body[s.start+8 : s.start+s.size]
		switch {
		case containerAtoms[s.name]:
			shiftChunkOffsets(child, delta)
		case s.name == "stco" && len(child) >= 8:
			count := int(binary.BigEndian.Uint32(child[4:8]))
			for i := 0; i < count && 8+(i+1)*4 <= len(child); i++ {
				pos := 8 + i*4
				v := binary.BigEndian.Uint32(child[pos : pos+4])
				binary.BigEndian.PutUint32(child[pos:pos+4], uint32(int64(v)+delta))
			}
		case s.name == "co64" && len(child) >= 8:
			count := int(binary.BigEndian.Uint32(child[4:8]))
			for i := 0; i < count && 8+(i+1)*8 <= len(child); i++ {
				pos := 8 + i*8
				v := binary.BigEndian.Uint64(child[pos : pos+8])
				binary.BigEndian.PutUint64(child[pos:pos+8], uint64(int64(v)+delta))
			}
		}
	}
}

// rewriteItems rebuilds the item list through transform and atomically
// replaces the file. When the moov atom precedes mdat, chunk offsets
// are shifted by the size delta so sample references stay valid.
func rewriteItems(path string, transform func([]item) []item) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open mp4: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat mp4: %w", err)
	}

	// Top-level layout.
	type topAtom struct {
		name      string
		offset    int64
		size      int64
		headerLen int64
	}
	var atoms []topAtom
	offset := int64(0)
	for offset+8 <= info.Size() {
		header := make([]byte, 8)
		if _, err := f.ReadAt(header, offset); err != nil {
			return fmt.Errorf("read atom header: %w", err)
		}
		size := int64(binary.BigEndian.Uint32(header[0:4]))
		name := string(header[4:8])
		headerLen := int64(8)
		if size == 1 {
			ext := make([]byte, 8)
			if _, err := f.ReadAt(ext, offset+8); err != nil {
				return fmt.Errorf("read extended size: %w", err)
			}
			size = int64(binary.BigEndian.Uint64(ext))
			headerLen = 16
		}
		if size < headerLen {
			return fmt.Errorf("malformed atom %q at %d", name, offset)
		}
		if offset == 0 && name != "ftyp" {
			return fmt.Errorf("not an mp4 file")
		}
		atoms = append(atoms, topAtom{name: name, offset: offset, size: size, headerLen: headerLen})
		offset += size
	}

	moovIdx := -1
	mdatIdx := -1
	for i, a := range atoms {
		switch a.name {
		case "moov":
			moovIdx = i
		case "mdat":
			if mdatIdx < 0 {
				mdatIdx = i
			}
		}
	}
	if moovIdx < 0 {
		return fmt.Errorf("mp4: moov atom not found")
	}

	moovBody := make([]byte, atoms[moovIdx].size-atoms[moovIdx].headerLen)
	if _, err := f.ReadAt(moovBody, atoms[moovIdx].offset+atoms[moovIdx].headerLen); err != nil {
		return fmt.Errorf("read moov atom: %w", err)
	}

	var items []item
	if ilst := findAtomPath(moovBody, "udta", "meta", "ilst"); ilst != nil {
		items = parseItems(ilst)
	}
	newMoovBody := rebuildMoov(moovBody, encodeItems(transform(items)))

	if mdatIdx >= 0 && moovIdx < mdatIdx {
		delta := int64(8+len(newMoovBody)) - atoms[moovIdx].size
		if delta != 0 {
			shiftChunkOffsets(newMoovBody, delta)
		}
	}

	return fileutil.ReplaceFileAtomic(path, func(dst *os.File) error {
		for i, a := range atoms {
			if i == moovIdx {
				header := make([]byte, 8)
				binary.BigEndian.PutUint32(header[0:4], uint32(8+len(newMoovBody)))
				copy(header[4:8], "moov")
				if _, err := dst.Write(header); err != nil {
					return fmt.Errorf("write moov header: %w", err)
				}
				if _, err := dst.Write(newMoovBody); err != nil {
					return fmt.Errorf("write moov body: %w", err)
				}
				continue
			}
			if _, err := f.Seek(a.offset, io.SeekStart); err != nil {
				return fmt.Errorf("seek atom %s: %w", a.name, err)
			}
			if _, err := io.CopyN(dst, f, a.size); err != nil {
				return fmt.Errorf("copy atom %s: %w", a.name, err)
			}
		}
		return nil
	})
}
