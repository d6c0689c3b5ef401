package mjpeg

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"

	"github.com/bnema/upscaler/internal/domain"
)

const DefaultQuality = 95

type indexRecord struct {
	offset uint32
	size   uint32
}

// Writer encodes frames as JPEG chunks into an AVI container. The header is
// rewritten with the final counts on Close.
type Writer struct {
	f       *os.File
	w       *bufio.Writer
	path    string
	width   int
	height  int
	fps     float64
	quality int

	buf      bytes.Buffer
	index    []indexRecord
	moviLen  uint32 // bytes after the 'movi' list type
	maxFrame uint32
	closed   bool
}

func Create(path string, width, height int, fps float64, quality int) (*Writer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	if fps <= 0 {
		return nil, fmt.Errorf("invalid frame rate %v", fps)
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, &domain.BackendIOError{Op: "create", Path: path, Err: err}
	}

	w := &Writer{
		f:       f,
		w:       bufio.NewWriter(f),
		path:    path,
		width:   width,
		height:  height,
		fps:     fps,
		quality: quality,
	}
	if _, err := w.w.Write(buildHeader(width, height, fps, 0, 0, 4, 0)); err != nil {
		_ = f.Close()
		return nil, &domain.BackendIOError{Op: "write header", Path: path, Err: err}
	}
	return w, nil
}

func (w *Writer) WriteFrame(img image.Image) error {
	if w.closed {
		return fmt.Errorf("write to closed writer")
	}
	b := img.Bounds()
	if b.Dx() != w.width || b.Dy() != w.height {
		return fmt.Errorf("frame is %dx%d, want %dx%d", b.Dx(), b.Dy(), w.width, w.height)
	}

	w.buf.Reset()
	if err := jpeg.Encode(&w.buf, img, &jpeg.Options{Quality: w.quality}); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	size := uint32(w.buf.Len())

	var hdr [8]byte
	copy(hdr[:4], "00dc")
	le.PutUint32(hdr[4:], size)
	if _, err := w.w.Write(hdr[:]); err != nil {
		return w.ioErr(err)
	}
	if _, err := w.w.Write(w.buf.Bytes()); err != nil {
		return w.ioErr(err)
	}
	if size&1 == 1 {
		if err := w.w.WriteByte(0); err != nil {
			return w.ioErr(err)
		}
	}

	// idx1 offsets are relative to the 'movi' list type.
	w.index = append(w.index, indexRecord{offset: 4 + w.moviLen, size: size})
	w.moviLen += 8 + size + size&1
	if size > w.maxFrame {
		w.maxFrame = size
	}
	return nil
}

// Frames returns how many frames have been written.
func (w *Writer) Frames() int { return len(w.index) }

func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.finish(); err != nil {
		_ = w.f.Close()
		return err
	}
	if err := w.f.Close(); err != nil {
		return w.ioErr(err)
	}
	return nil
}

func (w *Writer) finish() error {
	var hdr [8]byte
	copy(hdr[:4], "idx1")
	le.PutUint32(hdr[4:], uint32(len(w.index)*indexEntry))
	if _, err := w.w.Write(hdr[:]); err != nil {
		return w.ioErr(err)
	}
	var entry [indexEntry]byte
	for _, rec := range w.index {
		copy(entry[:4], "00dc")
		le.PutUint32(entry[4:], aviifKey)
		le.PutUint32(entry[8:], rec.offset)
		le.PutUint32(entry[12:], rec.size)
		if _, err := w.w.Write(entry[:]); err != nil {
			return w.ioErr(err)
		}
	}
	if err := w.w.Flush(); err != nil {
		return w.ioErr(err)
	}

	fileSize := uint32(headerSize) + w.moviLen + 8 + uint32(len(w.index)*indexEntry)
	header := buildHeader(w.width, w.height, w.fps, uint32(len(w.index)), w.maxFrame, 4+w.moviLen, fileSize-8)
	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return w.ioErr(err)
	}
	if _, err := w.f.Write(header); err != nil {
		return w.ioErr(err)
	}
	return nil
}

func (w *Writer) ioErr(err error) error {
	return &domain.BackendIOError{Op: "write", Path: w.path, Err: err}
}
