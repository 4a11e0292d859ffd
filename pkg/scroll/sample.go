package scroll

// DefaultThreshold is the distance from the bottom, in content units, at which a
// sample asks for more data.
const DefaultThreshold = 20

// Sample is one observation of a scrollable area.
type Sample struct {
	// ScrollTop is the offset of the first visible unit.
	ScrollTop int
	// ViewportHeight is the number of visible units.
	ViewportHeight int
	// ContentHeight is the total height of the content.
	ContentHeight int
}

// NearBottom reports whether the bottom of the viewport is within margin units of the
// end of the content.
func (s Sample) NearBottom(margin int) bool {
	return s.ScrollTop+s.ViewportHeight+margin > s.ContentHeight
}
