package transfer

type InstagramID struct {
	ID string `json:"id"`
}

type InstagramContainer struct {
	MediaType   string   `json:"media_type,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	VideoURL    string   `json:"video_url,omitempty"`
	Caption     string   `json:"caption,omitempty"`
	IsCarousel  bool     `json:"is_carousel_item,omitempty"`
	Children    []string `json:"children,omitempty"`
	ShareToFeed *bool    `json:"share_to_feed,omitempty"`
}

type InstagramPublish struct {
	CreationID string `json:"creation_id"`
}

type InstagramContainerStatus struct {
	ID         string `json:"id"`
	StatusCode string `json:"status_code"`
	Status     string `json:"status"`
}

type InstagramMedia struct {
	ID        string `json:"id"`
	Caption   string `json:"caption"`
	Permalink string `json:"permalink"`
	Timestamp string `json:"timestamp"`
	Username  string `json:"username"`
	OwnerID   string `json:"owner_id"`
}

type InstagramMediaList struct {
	Data []InstagramMedia `json:"data"`
}

type InstagramHashtagSearch struct {
	Data []InstagramID `json:"data"`
}

type InstagramAccountInfo struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	FollowersCount int    `json:"followers_count"`
	FollowsCount   int    `json:"follows_count"`
	MediaCount     int    `json:"media_count"`
}

type InstagramComment struct {
	Message string `json:"message"`
}

type InstagramMessage struct {
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
}

type InstagramMessageResponse struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
}

type InstagramErrorResponse struct {
	Error struct {
		Message        string `json:"message"`
		Type           string `json:"type"`
		Code           int    `json:"code"`
		ErrorSubcode   int    `json:"error_subcode"`
		IsTransient    bool   `json:"is_transient"`
		ErrorUserTitle string `json:"error_user_title"`
		ErrorUserMsg   string `json:"error_user_msg"`
		FbtraceID      string `json:"fbtrace_id"`
	} `json:"error"`
}
