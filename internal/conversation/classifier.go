package conversation

import (
	"context"
	"strings"

	"github.com/maheshrc27/persona-scheduler/internal/models"
)

// Verdict is the outcome of classifying one inbound message.
type Verdict struct {
	Status       models.MessageStatus
	NeedsReview  bool
	ReviewReason string
}

type Classifier interface {
	Classify(ctx context.Context, conv *models.Conversation, body string) (Verdict, error)
}

// KeywordClassifier ignores obvious spam and hands conversations that touch
// money, meetings or threats to a human.
type KeywordClassifier struct {
	Spam   []string
	Review map[string][]string
}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		Spam: []string{
			"crypto", "bitcoin", "forex", "investment opportunity", "click this link",
			"free followers", "promote your page", "dm for promo", "check my bio",
		},
		Review: map[string][]string{
			"payment":  {"paypal", "venmo", "cashapp", "bank transfer", "invoice", "wire me", "send money"},
			"meeting":  {"meet up", "meet in person", "your address", "phone number", "whatsapp", "telegram"},
			"threat":   {"kill", "hurt you", "lawyer", "sue you", "police", "report you"},
			"business": {"collab", "sponsorship", "brand deal", "rate card"},
		},
	}
}

func (k *KeywordClassifier) Classify(_ context.Context, _ *models.Conversation, body string) (Verdict, error) {
	text := strings.ToLower(strings.TrimSpace(body))
	if text == "" {
		return Verdict{Status: models.MessageIgnored}, nil
	}

	for _, kw := range k.Spam {
		if strings.Contains(text, kw) {
			return Verdict{Status: models.MessageIgnored}, nil
		}
	}

	// Stable order keeps the reported reason deterministic.
	for _, reason := range []string{"threat", "payment", "meeting", "business"} {
		for _, kw := range k.Review[reason] {
			if strings.Contains(text, kw) {
				return Verdict{Status: models.MessagePendingResponse, NeedsReview: true, ReviewReason: reason}, nil
			}
		}
	}
	return Verdict{Status: models.MessagePendingResponse}, nil
}
