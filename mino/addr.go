package mino

// addressIterator is an implementation of the iterator for addresses.
//
// - implements mino.AddressIterator
type addressIterator struct {
	index int
	addrs []Address
}

// Seek implements mino.AddressIterator. It moves the iterator to the index.
func (it *addressIterator) Seek(index int) {
	it.index = index
}

// HasNext implements mino.AddressIterator. It returns true if there is an
// address available.
func (it *addressIterator) HasNext() bool {
	return it.index < len(it.addrs)
}

// GetNext implements mino.AddressIterator. It returns the address at the
// current index and moves the iterator to the next address.
func (it *addressIterator) GetNext() Address {
	if it.HasNext() {
		res := it.addrs[it.index]
		it.index++
		return res
	}
	return nil
}

// roster is an implementation of the mino.Players interface. It provides a
// helper when known addresses need to be grouped into a roster for mino calls.
//
// - implements mino.Players
type roster struct {
	addrs []Address
}

// NewAddresses is a helper to create a roster from a list of addresses.
func NewAddresses(addrs ...Address) Players {
	return roster{addrs: addrs}
}

// Take implements mino.Players. It returns a subset of the roster according to
// the filters.
func (r roster) Take(updaters ...FilterUpdater) Players {
	filters := ApplyFilters(updaters)

	addrs := make([]Address, len(filters.Indices))
	for i, k := range filters.Indices {
		addrs[i] = r.addrs[k]
	}

	return roster{addrs: addrs}
}

// AddressIterator implements mino.Players. It returns an iterator over the
// addresses of the roster.
func (r roster) AddressIterator() AddressIterator {
	return &addressIterator{addrs: r.addrs}
}

// Len implements mino.Players. It returns the number of addresses.
func (r roster) Len() int {
	return len(r.addrs)
}
