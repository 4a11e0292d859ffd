package tui

// pageLoadedMsg reports the end of one fetcher call. gen is the results
// generation the call was issued for.
type pageLoadedMsg struct {
	gen      int
	first    bool
	received int
	err      error
}
