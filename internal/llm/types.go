package llm

// ReplyRequest is the llm_reply job payload. The gateway fills it from the
// inbound event; the worker-side handler turns it into a model prompt.
type ReplyRequest struct {
	Prompt         string   `json:"prompt"`
	Username       string   `json:"username,omitempty"`
	GroupName      string   `json:"group_name,omitempty"`
	GroupID        string   `json:"group_id,omitempty"`
	ChannelContext []string `json:"channel_context,omitempty"`
	ActiveUserIDs  []string `json:"active_user_ids,omitempty"`
}

// ReplyResponse is the llm_reply result value.
type ReplyResponse struct {
	Reply string `json:"reply"`
}

// ScanRequest is the safety_scan job payload.
type ScanRequest struct {
	Content  string `json:"content"`
	GroupID  string `json:"group_id,omitempty"`
	AuthorID string `json:"author_id,omitempty"`
}

// ScanResponse is the safety_scan result value. Verdict is "safe" or a
// violation category.
type ScanResponse struct {
	Verdict string `json:"verdict"`
}
