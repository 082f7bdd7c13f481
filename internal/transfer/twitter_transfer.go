package transfer

type TweetRequest struct {
	Text  string      `json:"text"`
	Reply *TweetReply `json:"reply,omitempty"`
}

type TweetReply struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type TweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type TwitterLikeRequest struct {
	TweetID string `json:"tweet_id"`
}

type TwitterFollowRequest struct {
	TargetUserID string `json:"target_user_id"`
}

type TwitterDMRequest struct {
	Text string `json:"text"`
}

type TwitterDMResponse struct {
	Data struct {
		DMConversationID string `json:"dm_conversation_id"`
		DMEventID        string `json:"dm_event_id"`
	} `json:"data"`
}

type TwitterSearchResponse struct {
	Data []struct {
		ID        string `json:"id"`
		Text      string `json:"text"`
		AuthorID  string `json:"author_id"`
		CreatedAt string `json:"created_at"`
		Entities  struct {
			Hashtags []struct {
				Tag string `json:"tag"`
			} `json:"hashtags"`
		} `json:"entities"`
	} `json:"data"`
}

type TwitterUserResponse struct {
	Data struct {
		ID            string `json:"id"`
		Username      string `json:"username"`
		PublicMetrics struct {
			FollowersCount int `json:"followers_count"`
			FollowingCount int `json:"following_count"`
			TweetCount     int `json:"tweet_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}
