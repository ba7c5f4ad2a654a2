package downloader

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"jusdown/internal/entity"
)

const (
	codecNone        = "none"
	bitrateTolerance = 20.0
)

var (
	videoHeights  = []int{1080, 720, 480, 360}
	audioBitrates = []int{320, 256, 128, 96}
)

// SelectFormats keeps formats carrying both tracks at a listed height and
// audio-only formats within 20k of a listed bitrate. Options with the same
// text are reported once; videos come first, best quality first.
func SelectFormats(formats []entity.MediaFormat) []entity.FormatOption {
	out := make([]entity.FormatOption, 0, len(formats))
	seen := make(map[string]bool)

	for _, f := range formats {
		opt, ok := formatOption(f)
		if !ok || seen[opt.Text] {
			continue
		}

		seen[opt.Text] = true
		out = append(out, opt)
	}

	slices.SortStableFunc(out, func(a, b entity.FormatOption) int {
		if a.Type != b.Type {
			if a.Type == entity.ContentVideo {
				return -1
			}

			return 1
		}

		return cmp.Compare(b.Quality, a.Quality)
	})

	return out
}

func formatOption(f entity.MediaFormat) (entity.FormatOption, bool) {
	ext := strings.ToUpper(f.Ext)

	switch {
	case f.VCodec == codecNone && f.ACodec != codecNone:
		for _, target := range audioBitrates {
			if f.ABR > 0 && math.Abs(f.ABR-float64(target)) <= bitrateTolerance {
				return entity.FormatOption{
					ID:      f.ID,
					Text:    fmt.Sprintf("Audio %dk (%s)", target, ext),
					Type:    entity.ContentAudio,
					Quality: target,
				}, true
			}
		}
	case f.VCodec != codecNone && f.ACodec != codecNone && slices.Contains(videoHeights, f.Height):
		return entity.FormatOption{
			ID:      f.ID,
			Text:    fmt.Sprintf("Video %dp (%s)", f.Height, ext),
			Type:    entity.ContentVideo,
			Quality: f.Height,
		}, true
	}

	return entity.FormatOption{}, false
}
