package jpeg

import "bytes"

// AppData holds the application-segment metadata the decoder recognizes
// well enough to act on beyond plain byte passthrough: JFIF/AVI1 presence
// and the Adobe APP14 color transform. Everything else a consumer needs
// (Exif, XMP, ICC profiles, raw comments) is exposed as opaque bytes via
// Metadata, since this decoder only decodes pixels, not metadata formats.
type AppData struct {
	IsJFIF bool
	IsAVI1 bool

	// AdobeTransform is set when an APP14 Adobe segment was present.
	AdobeTransform AdobeColorTransform
	HasAdobe       bool
}

// AdobeColorTransform mirrors the color transform byte of an Adobe APP14
// segment, which overrides the component-count-based color space guess.
type AdobeColorTransform int

const (
	AdobeTransformUnknown AdobeColorTransform = iota
	AdobeTransformYCbCr
	AdobeTransformYCCK
)

// Metadata collects opaque application-segment payloads encountered while
// scanning a stream, keyed by the kind of data they carry. None of their
// contents are interpreted; callers that need structured Exif/XMP/ICC data
// must parse these themselves.
type Metadata struct {
	// Exif is the raw payload of an APP1 Exif segment (the bytes after the
	// "Exif\x00\x00" signature), if one was present.
	Exif []byte
	// XMP is the raw payload of an APP1 XMP packet (the bytes after the
	// XMP signature URI), if one was present.
	XMP []byte
	// ICCProfile is the reassembled payload of one or more APP2 ICC_PROFILE
	// chunks, in sequence-number order, or nil if none were present.
	ICCProfile []byte
	// Comments holds the raw payload of every COM segment encountered, in
	// stream order.
	Comments [][]byte

	iccChunks  map[byte][]byte
	iccTotal   byte
	iccInvalid bool
}

var (
	jfifSignature  = []byte("JFIF\x00")
	avi1Signature  = []byte("AVI1\x00")
	exifSignature  = []byte("Exif\x00\x00")
	xmpSignature   = []byte("http://ns.adobe.com/xap/1.0/\x00")
	iccSignature   = []byte("ICC_PROFILE\x00")
	adobeSignature = []byte("Adobe\x00")
)

// parseAPP0 inspects an APP0 segment's payload for a JFIF or AVI1 tag,
// setting the corresponding flag on data. Unrecognized APP0 variants
// (e.g. JFXX thumbnails) are ignored beyond that.
func parseAPP0(payload []byte, data *AppData) {
	if bytes.HasPrefix(payload, jfifSignature) {
		data.IsJFIF = true
	} else if bytes.HasPrefix(payload, avi1Signature) {
		data.IsAVI1 = true
	}
}

// parseAPP1 recognizes Exif and XMP payloads within an APP1 segment and
// stores their bytes verbatim (signature stripped) in md.
func parseAPP1(payload []byte, md *Metadata) {
	if bytes.HasPrefix(payload, exifSignature) {
		if md.Exif == nil {
			md.Exif = append([]byte(nil), payload[len(exifSignature):]...)
		}
		return
	}
	if bytes.HasPrefix(payload, xmpSignature) {
		if md.XMP == nil {
			md.XMP = append([]byte(nil), payload[len(xmpSignature):]...)
		}
	}
}

// parseAPP2 reassembles a chunked ICC_PROFILE APP2 segment. Each chunk
// carries a 1-based sequence number and the total chunk count; chunks may
// arrive out of order in principle, so they are buffered by number and
// only concatenated once all are seen. A zero, out-of-range, or duplicate
// sequence number invalidates the whole profile without rejecting the
// image: the pixels decode fine, only the metadata is unusable.
func parseAPP2(payload []byte, md *Metadata) error {
	if !bytes.HasPrefix(payload, iccSignature) {
		return nil
	}
	rest := payload[len(iccSignature):]
	if len(rest) < 2 {
		return FormatError("ICC_PROFILE APP2 segment too short")
	}
	if md.iccInvalid {
		return nil
	}
	seq, total := rest[0], rest[1]
	chunk := rest[2:]
	if seq == 0 || total == 0 || seq > total {
		md.invalidateICC()
		return nil
	}

	if md.iccChunks == nil {
		md.iccChunks = make(map[byte][]byte)
	}
	if md.iccTotal != 0 && md.iccTotal != total {
		return FormatError("inconsistent ICC_PROFILE chunk count")
	}
	if _, dup := md.iccChunks[seq]; dup {
		md.invalidateICC()
		return nil
	}
	md.iccTotal = total
	md.iccChunks[seq] = append([]byte(nil), chunk...)

	if byte(len(md.iccChunks)) != total {
		return nil
	}
	var buf bytes.Buffer
	for i := byte(1); i <= total; i++ {
		buf.Write(md.iccChunks[i])
	}
	md.ICCProfile = buf.Bytes()
	return nil
}

func (md *Metadata) invalidateICC() {
	md.iccInvalid = true
	md.iccChunks = nil
	md.ICCProfile = nil
}

// parseAPP14 reads an Adobe APP14 segment's color transform byte.
func parseAPP14(payload []byte, data *AppData) error {
	if !bytes.HasPrefix(payload, adobeSignature) {
		return nil
	}
	rest := payload[len(adobeSignature):]
	if len(rest) < 6 {
		return FormatError("Adobe APP14 segment too short")
	}
	switch rest[5] {
	case 0:
		data.AdobeTransform = AdobeTransformUnknown
	case 1:
		data.AdobeTransform = AdobeTransformYCbCr
	case 2:
		data.AdobeTransform = AdobeTransformYCCK
	default:
		return FormatError("invalid Adobe color transform code")
	}
	data.HasAdobe = true
	return nil
}

// parseAPP reads one APPn segment's payload and routes it to the
// appropriate recognizer, falling through to no-op for indices this
// decoder assigns no meaning to.
func parseAPP(r Reader, marker Marker, data *AppData, md *Metadata) error {
	length, err := readLength(r, marker)
	if err != nil {
		return err
	}
	payload := make([]byte, length)
	if err := r.ReadExact(payload); err != nil {
		return err
	}

	switch marker.APPIndex() {
	case 0:
		parseAPP0(payload, data)
	case 1:
		parseAPP1(payload, md)
	case 2:
		return parseAPP2(payload, md)
	case 14:
		return parseAPP14(payload, data)
	}
	return nil
}
