package anthropic

// BuildCachedSystemBlocks constructs system content blocks with a cache
// breakpoint set to a 1-hour TTL. A bulk audit sends the same system prompt
// for every account, so after the first call the rest read from the warm
// cache at a fraction of the input price.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: "1h",
			},
		},
	}
}

// FirstText returns the first text content block of a response, or "".
func FirstText(resp *MessageResponse) string {
	if resp == nil {
		return ""
	}
	for _, b := range resp.Content {
		if b.Type == "text" && b.Text != "" {
			return b.Text
		}
	}
	return ""
}
