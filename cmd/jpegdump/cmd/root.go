package cmd

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	jpeg "github.com/kdriscoll-eng/jpegcodec"
)

// NewRoot builds the jpegdump command tree: a single action taking a
// positional input JPEG and output PNG path.
func NewRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jpegdump <input.jpg> <output.png>",
		Short: "decode a JPEG file and write it out as a PNG",
		Args:  cobra.ExactArgs(2),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logLevel, _ := cmd.Flags().GetString("log-level")
			var level slog.Level
			if err := level.UnmarshalText([]byte(strings.ToUpper(logLevel))); err != nil {
				level = slog.LevelInfo
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
		RunE: runDecode,
	}
	pf := cmd.PersistentFlags()
	pf.String("log-level", "INFO", "log level (DEBUG, INFO, WARN, ERROR)")
	pf.String("scale", "", "request a reduced decoded size of at least WxH on one axis (e.g. 640x480)")
	return cmd
}

func runDecode(cmd *cobra.Command, args []string) error {
	inPath, outPath := args[0], args[1]

	scaleSpec, _ := cmd.Flags().GetString("scale")

	in, err := os.Open(inPath)
	if err != nil {
		slog.Error("failed to open input", "path", inPath, "error", err)
		return err
	}
	defer in.Close()

	dec := jpeg.NewDecoder(jpeg.NewReader(in))
	frame, err := dec.ReadInfo()
	if err != nil {
		slog.Error("failed to read JPEG header", "path", inPath, "error", err)
		return err
	}
	slog.Debug("parsed frame", "width", frame.ImageSize.Width, "height", frame.ImageSize.Height,
		"components", len(frame.Components), "coding", frame.CodingProcess.String())

	if scaleSpec != "" {
		w, h, err := parseScale(scaleSpec)
		if err != nil {
			return err
		}
		dec.Scale(w, h)
	}

	pix, err := dec.Decode()
	if err != nil {
		slog.Error("failed to decode JPEG", "path", inPath, "error", err)
		return err
	}

	img, err := toImage(dec.Layout(), pix)
	if err != nil {
		slog.Error("unsupported output layout", "error", err)
		return err
	}

	out, err := os.Create(outPath)
	if err != nil {
		slog.Error("failed to create output", "path", outPath, "error", err)
		return err
	}
	defer out.Close()

	if err := png.Encode(out, img); err != nil {
		slog.Error("failed to encode PNG", "path", outPath, "error", err)
		return err
	}
	slog.Info("decoded", "input", inPath, "output", outPath,
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return nil
}

func parseScale(spec string) (int, int, error) {
	parts := strings.SplitN(strings.ToLower(spec), "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid --scale value %q, want WxH", spec)
	}
	w, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid --scale width: %w", err)
	}
	h, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid --scale height: %w", err)
	}
	return w, h, nil
}

// toImage wraps the decoder's interleaved raster in the standard image
// type matching its layout, without copying pixel data for the 8-bit
// single- and four-channel cases (image.Gray and image.CMYK both use a
// tightly packed, per-pixel-contiguous layout identical to ours).
func toImage(layout jpeg.OutputLayout, pix []byte) (image.Image, error) {
	rect := image.Rect(0, 0, layout.Width, layout.Height)
	switch {
	case layout.Channels == 1 && layout.Precision <= 8:
		return &image.Gray{Pix: pix, Stride: layout.Width, Rect: rect}, nil
	case layout.Channels == 1:
		// The decoder packs 16-bit samples native-endian; image.Gray16
		// wants big-endian.
		gray := image.NewGray16(rect)
		for i := 0; i+1 < len(pix); i += 2 {
			v := binary.NativeEndian.Uint16(pix[i:])
			gray.Pix[i] = byte(v >> 8)
			gray.Pix[i+1] = byte(v)
		}
		return gray, nil
	case layout.Channels == 3:
		rgba := image.NewRGBA(rect)
		for y := 0; y < layout.Height; y++ {
			for x := 0; x < layout.Width; x++ {
				si := (y*layout.Width + x) * 3
				di := rgba.PixOffset(x, y)
				rgba.Pix[di+0] = pix[si+0]
				rgba.Pix[di+1] = pix[si+1]
				rgba.Pix[di+2] = pix[si+2]
				rgba.Pix[di+3] = 0xff
			}
		}
		return rgba, nil
	case layout.Channels == 4:
		return &image.CMYK{Pix: pix, Stride: layout.Width * 4, Rect: rect}, nil
	default:
		return nil, fmt.Errorf("unsupported channel count %d", layout.Channels)
	}
}
