// Package mjpeg reads and writes Motion-JPEG AVI files without any external
// process. It covers the single video stream layout produced by cameras and
// by its own writer; audio and other streams are skipped.
package mjpeg

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	headerSize  = 224
	avihSize    = 56
	strhSize    = 56
	strfSize    = 40
	hdrlSize    = 4 + (8 + avihSize) + (8 + 4 + (8 + strhSize) + (8 + strfSize))
	strlSize    = 4 + (8 + strhSize) + (8 + strfSize)
	indexEntry  = 16
	avifHasIdx  = 0x10
	aviifKey    = 0x10
	maxChunkLen = 64 << 20
)

var le = binary.LittleEndian

var errNotAVI = errors.New("not a RIFF AVI file")

// streamHeader holds what we keep from hdrl.
type streamHeader struct {
	width       int
	height      int
	scale       uint32
	rate        uint32
	length      uint32
	totalFrames uint32
	compression string
}

func (h streamHeader) fps() float64 {
	if h.scale == 0 || h.rate == 0 {
		return 0
	}
	return float64(h.rate) / float64(h.scale)
}

func (h streamHeader) frames() int {
	if h.length > 0 {
		return int(h.length)
	}
	return int(h.totalFrames)
}

// parseHeaderList decodes the contents of a LIST 'hdrl' after its list type.
func parseHeaderList(data []byte) (streamHeader, error) {
	var h streamHeader
	foundVideo := false

	err := walkChunks(data, func(id string, body []byte) error {
		switch id {
		case "avih":
			if len(body) < 40 {
				return fmt.Errorf("avih too short")
			}
			h.totalFrames = le.Uint32(body[16:])
			h.width = int(le.Uint32(body[32:]))
			h.height = int(le.Uint32(body[36:]))
		case "LIST":
			if foundVideo || len(body) < 4 || string(body[:4]) != "strl" {
				return nil
			}
			sh, ok, err := parseStreamList(body[4:])
			if err != nil {
				return err
			}
			if ok {
				foundVideo = true
				if sh.width > 0 && sh.height > 0 {
					h.width, h.height = sh.width, sh.height
				}
				h.scale, h.rate, h.length = sh.scale, sh.rate, sh.length
				h.compression = sh.compression
			}
		}
		return nil
	})
	if err != nil {
		return h, err
	}
	if !foundVideo {
		return h, errors.New("no video stream found")
	}
	return h, nil
}

func parseStreamList(data []byte) (streamHeader, bool, error) {
	var (
		h     streamHeader
		video bool
	)
	err := walkChunks(data, func(id string, body []byte) error {
		switch id {
		case "strh":
			if len(body) < 36 {
				return fmt.Errorf("strh too short")
			}
			video = string(body[0:4]) == "vids"
			h.scale = le.Uint32(body[20:])
			h.rate = le.Uint32(body[24:])
			h.length = le.Uint32(body[32:])
		case "strf":
			if !video {
				return nil
			}
			if len(body) < 20 {
				return fmt.Errorf("strf too short")
			}
			h.width = int(int32(le.Uint32(body[4:])))
			height := int(int32(le.Uint32(body[8:])))
			if height < 0 {
				height = -height
			}
			h.height = height
			h.compression = string(body[16:20])
		}
		return nil
	})
	return h, video, err
}

// walkChunks visits each RIFF chunk in data.
func walkChunks(data []byte, fn func(id string, body []byte) error) error {
	for len(data) >= 8 {
		id := string(data[:4])
		size := int(le.Uint32(data[4:8]))
		data = data[8:]
		if size > len(data) {
			return fmt.Errorf("chunk %q overruns its parent", id)
		}
		if err := fn(id, data[:size]); err != nil {
			return err
		}
		size += size & 1
		if size > len(data) {
			size = len(data)
		}
		data = data[size:]
	}
	return nil
}

func isCompressed(c string) bool {
	switch c {
	case "MJPG", "mjpg", "AVRn", "dmb1", "jpeg", "JPEG":
		return true
	}
	return false
}

// buildHeader renders the fixed header written at the start of every file.
func buildHeader(width, height int, fps float64, frames, maxFrame, moviSize, riffSize uint32) []byte {
	b := make([]byte, 0, headerSize)
	u32 := func(v uint32) { b = le.AppendUint32(b, v) }
	u16 := func(v uint16) { b = le.AppendUint16(b, v) }
	cc := func(s string) { b = append(b, s...) }

	rate := uint32(fps*1000 + 0.5)
	usPerFrame := uint32(0)
	if fps > 0 {
		usPerFrame = uint32(1e6/fps + 0.5)
	}

	cc("RIFF")
	u32(riffSize)
	cc("AVI ")

	cc("LIST")
	u32(hdrlSize)
	cc("hdrl")

	cc("avih")
	u32(avihSize)
	u32(usPerFrame)
	u32(uint32(float64(maxFrame) * fps))
	u32(0)
	u32(avifHasIdx)
	u32(frames)
	u32(0)
	u32(1)
	u32(maxFrame)
	u32(uint32(width))
	u32(uint32(height))
	u32(0)
	u32(0)
	u32(0)
	u32(0)

	cc("LIST")
	u32(strlSize)
	cc("strl")

	cc("strh")
	u32(strhSize)
	cc("vids")
	cc("MJPG")
	u32(0)
	u16(0)
	u16(0)
	u32(0)
	u32(1000)
	u32(rate)
	u32(0)
	u32(frames)
	u32(maxFrame)
	u32(0xFFFFFFFF)
	u32(0)
	u16(0)
	u16(0)
	u16(uint16(width))
	u16(uint16(height))

	cc("strf")
	u32(strfSize)
	u32(strfSize)
	u32(uint32(width))
	u32(uint32(height))
	u16(1)
	u16(24)
	cc("MJPG")
	u32(uint32(width * height * 3))
	u32(0)
	u32(0)
	u32(0)
	u32(0)

	cc("LIST")
	u32(moviSize)
	cc("movi")

	return b
}
