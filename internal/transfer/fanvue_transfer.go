package transfer

type FanvuePostRequest struct {
	Text      string   `json:"text"`
	MediaURLs []string `json:"mediaUrls,omitempty"`
	Audience  string   `json:"audience"`
}

type FanvuePost struct {
	UUID string `json:"uuid"`
	URL  string `json:"url"`
}

type FanvueCommentRequest struct {
	Text string `json:"text"`
}

type FanvueMessageRequest struct {
	Text string `json:"text"`
}

type FanvueMessage struct {
	UUID string `json:"uuid"`
}

type FanvueProfile struct {
	UUID           string `json:"uuid"`
	Handle         string `json:"handle"`
	FollowersCount int    `json:"followersCount"`
	FollowingCount int    `json:"followingCount"`
	PostsCount     int    `json:"postsCount"`
}
