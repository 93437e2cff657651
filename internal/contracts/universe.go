package contracts

// Universe is the ordered set of symbols eligible for ranking in a market
// on a given day. It defines the normalization population.
type Universe struct {
	Market  string   `json:"market"`
	Day     Day      `json:"day"`
	Symbols []string `json:"symbols"`
}

// Contains reports whether a symbol is in the universe.
func (u *Universe) Contains(symbol string) bool {
	for _, s := range u.Symbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// Count returns the number of symbols.
func (u *Universe) Count() int {
	return len(u.Symbols)
}
