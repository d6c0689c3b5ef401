package domain

import (
	"fmt"
	"math"
)

var targetHeights = map[ResolutionClass]int{
	Resolution720p:  720,
	Resolution1080p: 1080,
	Resolution4K:    2160,
}

// TargetHeight returns the fixed output height for a class. Unknown classes
// resolve to 720.
func TargetHeight(class ResolutionClass) int {
	if h, ok := targetHeights[class]; ok {
		return h
	}
	return targetHeights[Resolution720p]
}

// ResolveGeometry derives the output frame size from the source size,
// keeping the aspect ratio. Both dimensions are forced even.
func ResolveGeometry(srcWidth, srcHeight int, class ResolutionClass) (width, height int, err error) {
	if srcHeight <= 0 || srcWidth <= 0 {
		return 0, 0, &MalformedSourceError{
			Reason: fmt.Sprintf("invalid source dimensions %dx%d", srcWidth, srcHeight),
		}
	}

	height = evenDown(TargetHeight(class))
	exact := float64(height) / float64(srcHeight) * float64(srcWidth)
	width = int(math.Round(exact))
	if width%2 != 0 {
		// Step towards the exact value so the result stays within one pixel.
		if exact > float64(width) {
			width++
		} else {
			width--
		}
	}
	if width < 2 {
		width = 2
	}
	return width, height, nil
}

func evenDown(v int) int {
	if v%2 != 0 {
		return v - 1
	}
	return v
}
