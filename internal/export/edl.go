package export

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
)

// GenerateEDL writes a CMX3600 edit list of the groups as cut from source,
// so the export can be re-conformed in an NLE.
func GenerateEDL(groups []Group, source, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	tc := func(sec float64) string { return secondsToTimecode(sec, fps) }
	if isDropFrame {
		tc = func(sec float64) string { return dropFrameTimecode(sec, frameRate) }
	}

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	reel := "AX"
	record := 0.0
	for i, g := range groups {
		start := SnapToFrame(g.Start(), frameRate)
		end := SnapToFrame(g.End(), frameRate)
		duration := end - start

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, reel, "AA/V",
				tc(start), tc(end), tc(record), tc(record+duration)),
			fmt.Sprintf("* FROM CLIP NAME:  %s", ClipFilename(g)),
			fmt.Sprintf("* SOURCE FILE:  %s", filepath.Base(source)),
		)

		record += duration
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func secondsToTimecode(sec float64, fps int) string {
	totalFrames := int(math.Round(sec * float64(fps)))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}

// dropFrameTimecode labels real elapsed time at 29.97 or 59.94 fps in SMPTE
// drop-frame notation: frame labels 0 and 1 (0-3 at 59.94) are skipped at
// the start of every minute except each tenth, and ';' separates frames.
func dropFrameTimecode(sec, frameRate float64) string {
	fps := int(math.Round(frameRate))
	drop := fps / 15
	framesPerMinute := fps*60 - drop
	framesPer10Minutes := fps*600 - drop*9

	frame := int(math.Round(sec * frameRate))
	tens := frame / framesPer10Minutes
	rem := frame % framesPer10Minutes
	frame += drop * 9 * tens
	if rem > drop {
		frame += drop * ((rem - drop) / framesPerMinute)
	}

	frames := frame % fps
	totalSeconds := frame / fps
	return fmt.Sprintf("%02d:%02d:%02d;%02d",
		totalSeconds/3600, (totalSeconds/60)%60, totalSeconds%60, frames)
}
