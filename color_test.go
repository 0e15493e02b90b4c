package jpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestYCbCrMidGray checks the neutral point: Y=Cb=Cr=128 converts to a
// flat mid-gray RGB triple.
func TestYCbCrMidGray(t *testing.T) {
	r, g, b := ycbcrToRGB(128, 128, 128)
	assert.Equal(t, byte(128), r)
	assert.Equal(t, byte(128), g)
	assert.Equal(t, byte(128), b)
}

func TestYCbCrPureColors(t *testing.T) {
	// Y=255, Cb=Cr=128 is pure white regardless of chroma rounding.
	r, g, b := ycbcrToRGB(255, 128, 128)
	assert.Equal(t, byte(255), r)
	assert.Equal(t, byte(255), g)
	assert.Equal(t, byte(255), b)
}

func TestChooseColorSpaceHeuristics(t *testing.T) {
	gray := []Component{{Identifier: 1}}
	space, err := chooseColorSpace(gray, &AppData{})
	require.NoError(t, err)
	assert.Equal(t, ColorGrayscale, space)

	ycc := []Component{{Identifier: 1}, {Identifier: 2}, {Identifier: 3}}
	space, err = chooseColorSpace(ycc, &AppData{})
	require.NoError(t, err)
	assert.Equal(t, ColorYCbCr, space)

	rgb := []Component{{Identifier: 'R'}, {Identifier: 'G'}, {Identifier: 'B'}}
	space, err = chooseColorSpace(rgb, &AppData{})
	require.NoError(t, err)
	assert.Equal(t, ColorRGB, space)

	cmyk := []Component{{Identifier: 1}, {Identifier: 2}, {Identifier: 3}, {Identifier: 4}}
	space, err = chooseColorSpace(cmyk, &AppData{})
	require.NoError(t, err)
	assert.Equal(t, ColorYCCK, space, "4 components with no Adobe marker default to YCCK per spec scenario 6")

	space, err = chooseColorSpace(cmyk, &AppData{HasAdobe: true, AdobeTransform: AdobeTransformYCCK})
	require.NoError(t, err)
	assert.Equal(t, ColorYCCK, space)

	space, err = chooseColorSpace(cmyk, &AppData{HasAdobe: true, AdobeTransform: AdobeTransformUnknown})
	require.NoError(t, err)
	assert.Equal(t, ColorCMYK, space, "explicit Adobe Unknown transform forces CMYK")

	_, err = chooseColorSpace(make([]Component, 2), &AppData{})
	require.Error(t, err)
	assert.IsType(t, UnsupportedError(""), err)
}

func TestColorConvertLineCMYKInversion(t *testing.T) {
	planes := [][]byte{{10}, {20}, {30}, {40}}
	out := make([]byte, 4)
	colorConvertLine(ColorCMYK, planes, 1, out)
	assert.Equal(t, []byte{245, 235, 225, 215}, out)
}

func TestBytesPerPixel(t *testing.T) {
	assert.Equal(t, 1, bytesPerPixel(ColorGrayscale))
	assert.Equal(t, 3, bytesPerPixel(ColorRGB))
	assert.Equal(t, 3, bytesPerPixel(ColorYCbCr))
	assert.Equal(t, 4, bytesPerPixel(ColorCMYK))
	assert.Equal(t, 4, bytesPerPixel(ColorYCCK))
}
