package jpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAPP0JFIF(t *testing.T) {
	var data AppData
	parseAPP0(append([]byte("JFIF\x00"), 1, 2, 0, 0, 0, 0, 0), &data)
	assert.True(t, data.IsJFIF)
	assert.False(t, data.IsAVI1)
}

func TestParseAPP0AVI1(t *testing.T) {
	var data AppData
	parseAPP0([]byte("AVI1\x00"), &data)
	assert.True(t, data.IsAVI1)
}

func TestParseAPP1Exif(t *testing.T) {
	var md Metadata
	payload := append([]byte("Exif\x00\x00"), 0x4D, 0x4D, 0x00, 0x2A)
	parseAPP1(payload, &md)
	assert.Equal(t, []byte{0x4D, 0x4D, 0x00, 0x2A}, md.Exif)
}

func TestParseAPP1XMP(t *testing.T) {
	var md Metadata
	payload := append([]byte("http://ns.adobe.com/xap/1.0/\x00"), []byte("<x:xmpmeta/>")...)
	parseAPP1(payload, &md)
	assert.Equal(t, []byte("<x:xmpmeta/>"), md.XMP)
}

func TestParseAPP2ICCReassembly(t *testing.T) {
	var md Metadata
	chunk1 := append([]byte("ICC_PROFILE\x00"), 1, 2, 'a', 'b')
	chunk2 := append([]byte("ICC_PROFILE\x00"), 2, 2, 'c', 'd')

	require.NoError(t, parseAPP2(chunk1, &md))
	assert.Nil(t, md.ICCProfile, "profile incomplete until all chunks seen")
	require.NoError(t, parseAPP2(chunk2, &md))
	assert.Equal(t, []byte("abcd"), md.ICCProfile)
}

func TestParseAPP2RejectsInconsistentTotal(t *testing.T) {
	var md Metadata
	require.NoError(t, parseAPP2(append([]byte("ICC_PROFILE\x00"), 1, 2, 'a'), &md))
	err := parseAPP2(append([]byte("ICC_PROFILE\x00"), 2, 3, 'b'), &md)
	require.Error(t, err)
	assert.IsType(t, FormatError(""), err)
}

func TestParseAPP14AdobeTransform(t *testing.T) {
	var data AppData
	payload := append([]byte("Adobe\x00"), 100, 0, 0, 0, 0, 1)
	require.NoError(t, parseAPP14(payload, &data))
	assert.True(t, data.HasAdobe)
	assert.Equal(t, AdobeTransformYCbCr, data.AdobeTransform)
}

func TestParseAPP14RejectsInvalidCode(t *testing.T) {
	var data AppData
	payload := append([]byte("Adobe\x00"), 100, 0, 0, 0, 0, 9)
	err := parseAPP14(payload, &data)
	require.Error(t, err)
	assert.IsType(t, FormatError(""), err)
}

func TestParseAPPDispatchesByIndex(t *testing.T) {
	var data AppData
	var md Metadata
	payload := []byte("JFIF\x00\x01\x02\x00\x00\x00\x00\x00")
	seg := prependLength(payload)
	require.NoError(t, parseAPP(newSliceReader(seg), APP0, &data, &md))
	assert.True(t, data.IsJFIF)
}

func TestParseAPP2DuplicateChunkInvalidatesProfile(t *testing.T) {
	var md Metadata
	require.NoError(t, parseAPP2(append([]byte("ICC_PROFILE\x00"), 1, 2, 'a'), &md))
	require.NoError(t, parseAPP2(append([]byte("ICC_PROFILE\x00"), 1, 2, 'b'), &md))
	require.NoError(t, parseAPP2(append([]byte("ICC_PROFILE\x00"), 2, 2, 'c'), &md))
	assert.Nil(t, md.ICCProfile, "a duplicate sequence number invalidates the whole profile")
}

func TestParseAPP2ZeroSequenceInvalidatesProfile(t *testing.T) {
	var md Metadata
	require.NoError(t, parseAPP2(append([]byte("ICC_PROFILE\x00"), 0, 2, 'a'), &md))
	require.NoError(t, parseAPP2(append([]byte("ICC_PROFILE\x00"), 1, 2, 'b'), &md))
	require.NoError(t, parseAPP2(append([]byte("ICC_PROFILE\x00"), 2, 2, 'c'), &md))
	assert.Nil(t, md.ICCProfile)
}
