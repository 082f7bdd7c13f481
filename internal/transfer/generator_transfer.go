package transfer

type GenerateContentRequest struct {
	PersonaID   int64    `json:"persona_id"`
	PersonaName string   `json:"persona_name"`
	Bio         string   `json:"bio"`
	Niches      []string `json:"niches"`
	Topic       string   `json:"topic,omitempty"`
}

type GenerateContentResponse struct {
	Caption   string   `json:"caption"`
	MediaURLs []string `json:"media_urls"`
	VideoURLs []string `json:"video_urls"`
	Topic     string   `json:"topic"`
}

type GenerateReplyRequest struct {
	PersonaID   int64          `json:"persona_id"`
	PersonaName string         `json:"persona_name"`
	Bio         string         `json:"bio"`
	Kind        string         `json:"kind"`
	Context     string         `json:"context"`
	History     []ReplyHistory `json:"history,omitempty"`
}

type ReplyHistory struct {
	Direction string `json:"direction"`
	Body      string `json:"body"`
}

type GenerateReplyResponse struct {
	Text string `json:"text"`
}
