package llm

// truncate caps text at limit runes worth of bytes, appending "..." when cut.
// Chat platforms reject oversized replies outright, so every outgoing reply
// passes through here.
func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	if limit > 3 {
		return text[:limit-3] + "..."
	}
	return text[:limit]
}
