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

// Reader iterates the video frames of an MJPEG AVI file in file order.
type Reader struct {
	f      *os.File
	r      *bufio.Reader
	header streamHeader
	// remaining bytes of the movi list still to be read
	remaining int64
	path      string
}

// Open parses the AVI headers and positions the reader at the first frame.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.MalformedSourceError{Path: path, Err: err}
	}

	rd := &Reader{f: f, r: bufio.NewReader(f), path: path}
	if err := rd.readHeaders(); err != nil {
		_ = f.Close()
		return nil, &domain.MalformedSourceError{Path: path, Err: err}
	}
	return rd, nil
}

func (rd *Reader) readHeaders() error {
	var riff [12]byte
	if _, err := io.ReadFull(rd.r, riff[:]); err != nil {
		return errNotAVI
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "AVI " {
		return errNotAVI
	}

	haveHeader := false
	for {
		id, size, err := rd.chunkHeader()
		if err != nil {
			return fmt.Errorf("movi list not found: %w", err)
		}

		if id != "LIST" {
			if err := rd.skip(int64(size) + int64(size&1)); err != nil {
				return err
			}
			continue
		}

		var listType [4]byte
		if _, err := io.ReadFull(rd.r, listType[:]); err != nil {
			return err
		}
		body := int64(size) - 4

		switch string(listType[:]) {
		case "hdrl":
			if body > maxChunkLen {
				return fmt.Errorf("hdrl list too large")
			}
			data := make([]byte, body)
			if _, err := io.ReadFull(rd.r, data); err != nil {
				return err
			}
			rd.header, err = parseHeaderList(data)
			if err != nil {
				return err
			}
			haveHeader = true
			if size&1 == 1 {
				if err := rd.skip(1); err != nil {
					return err
				}
			}
		case "movi":
			if !haveHeader {
				return fmt.Errorf("movi list before hdrl")
			}
			rd.remaining = body
			return rd.validate()
		default:
			if err := rd.skip(body + int64(size&1)); err != nil {
				return err
			}
		}
	}
}

func (rd *Reader) validate() error {
	h := rd.header
	if h.width <= 0 || h.height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", h.width, h.height)
	}
	if !isCompressed(h.compression) {
		return fmt.Errorf("unsupported video compression %q", h.compression)
	}
	return nil
}

func (rd *Reader) chunkHeader() (string, uint32, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(rd.r, hdr[:]); err != nil {
		return "", 0, err
	}
	return string(hdr[:4]), le.Uint32(hdr[4:]), nil
}

func (rd *Reader) skip(n int64) error {
	_, err := rd.r.Discard(int(n))
	return err
}

// Info returns the stream metadata declared in the headers.
func (rd *Reader) Info() domain.SourceInfo {
	h := rd.header
	info := domain.SourceInfo{
		Width:      h.width,
		Height:     h.height,
		FrameRate:  h.fps(),
		FrameCount: h.frames(),
	}
	if info.FrameRate > 0 {
		info.Duration = float64(info.FrameCount) / info.FrameRate
	}
	return info
}

// Next decodes the next video frame. It returns io.EOF after the last one.
func (rd *Reader) Next() (image.Image, error) {
	for rd.remaining >= 8 {
		id, size, err := rd.chunkHeader()
		if err != nil {
			return nil, rd.truncated(err)
		}
		rd.remaining -= 8

		if id == "LIST" {
			// 'rec ' lists group chunks; their children follow inline.
			if err := rd.skip(4); err != nil {
				return nil, rd.truncated(err)
			}
			rd.remaining -= 4
			continue
		}

		padded := int64(size) + int64(size&1)
		if !isVideoChunk(id) {
			if err := rd.skip(padded); err != nil {
				return nil, rd.truncated(err)
			}
			rd.remaining -= padded
			continue
		}

		if size > maxChunkLen {
			return nil, &domain.MalformedSourceError{Path: rd.path, Reason: fmt.Sprintf("frame chunk of %d bytes", size)}
		}
		data := make([]byte, size)
		if _, err := io.ReadFull(rd.r, data); err != nil {
			return nil, rd.truncated(err)
		}
		if size&1 == 1 {
			_ = rd.skip(1)
		}
		rd.remaining -= padded

		if size == 0 {
			// Dropped frame marker.
			continue
		}
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, &domain.MalformedSourceError{Path: rd.path, Reason: "decode frame", Err: err}
		}
		return img, nil
	}
	return nil, io.EOF
}

func (rd *Reader) truncated(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		// Files cut short by a crashed recorder still yield their
		// complete frames.
		rd.remaining = 0
		return io.EOF
	}
	return &domain.MalformedSourceError{Path: rd.path, Err: err}
}

func (rd *Reader) Close() error {
	return rd.f.Close()
}

// isVideoChunk matches '##dc' and '##db' chunks of stream 00.
func isVideoChunk(id string) bool {
	return len(id) == 4 && id[:2] == "00" && (id[2:] == "dc" || id[2:] == "db")
}
