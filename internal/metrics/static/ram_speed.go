package static

// fastestModule picks the reported speed of the fastest memory module.
// Modules reporting zero are unknown and ignored.
func fastestModule(speeds []uint32) (uint32, bool) {
	var best uint32
	for _, s := range speeds {
		if s > best {
			best = s
		}
	}
	return best, best > 0
}
