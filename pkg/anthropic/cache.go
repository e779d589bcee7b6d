package anthropic

// BuildCachedSystemBlocks splits a system prompt into a shared cached block
// and an uncached suffix. The shared block is identical across every call in
// a run, so it gets a cache breakpoint with a 5-minute TTL; the per-field
// suffix rides uncached behind it.
func BuildCachedSystemBlocks(shared, suffix string) []SystemBlock {
	blocks := []SystemBlock{
		{
			Text: shared,
			CacheControl: &CacheControl{
				TTL: "5m",
			},
		},
	}
	if suffix != "" {
		blocks = append(blocks, SystemBlock{Text: suffix})
	}
	return blocks
}
