package field

// Smoothing defaults.
const (
	DefaultTileSize         = 10
	DefaultDensityThreshold = 0.6
)

// Smooth denoises a binary mask by tile-majority voting.
//
// The mask is split into non-overlapping tile×tile blocks starting at (0,0). A
// block becomes entirely Foreground when its foreground fraction is strictly
// greater than threshold, otherwise entirely Background.
//
// Rows and columns past the last complete block are not evaluated and are always
// Background in the output, whatever the input held there. Callers rely on that
// edge rule, so it is kept as is.
//
// A non-positive tile size yields an all-background mask.
func Smooth(m *Mask, tile int, threshold float64) *Mask {
	out := NewMask(m.Width, m.Height)
	if tile <= 0 {
		return out
	}

	area := float64(tile * tile)
	for ty := 0; ty+tile <= m.Height; ty += tile {
		for tx := 0; tx+tile <= m.Width; tx += tile {
			count := 0
			for y := ty; y < ty+tile; y++ {
				row := m.Pix[y*m.Width+tx : y*m.Width+tx+tile]
				for _, v := range row {
					if v != Background {
						count++
					}
				}
			}

			if float64(count)/area <= threshold {
				continue
			}
			for y := ty; y < ty+tile; y++ {
				row := out.Pix[y*out.Width+tx : y*out.Width+tx+tile]
				for i := range row {
					row[i] = Foreground
				}
			}
		}
	}
	return out
}
