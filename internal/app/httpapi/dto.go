package httpapi

import (
	"time"

	"github.com/velora-dev/velora/internal/app/domain/message"
	"github.com/velora-dev/velora/internal/app/domain/photo"
	"github.com/velora-dev/velora/internal/app/domain/user"
	"github.com/velora-dev/velora/internal/app/services/users"
)

type userSummary struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	KnownAs    string    `json:"knownAs"`
	Age        int       `json:"age"`
	Gender     string    `json:"gender"`
	City       string    `json:"city"`
	Country    string    `json:"country"`
	Created    time.Time `json:"created"`
	LastActive time.Time `json:"lastActive"`
	PhotoURL   string    `json:"photoUrl,omitempty"`
}

type userDetail struct {
	userSummary
	Introduction string          `json:"introduction"`
	LookingFor   string          `json:"lookingFor"`
	Interests    string          `json:"interests"`
	Photos       []photoResponse `json:"photos"`
}

type photoResponse struct {
	ID          int64     `json:"id"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	DateAdded   time.Time `json:"dateAdded"`
	IsMain      bool      `json:"isMain"`
	IsApproved  bool      `json:"isApproved"`
}

type messageResponse struct {
	ID          int64      `json:"id"`
	SenderID    int64      `json:"senderId"`
	RecipientID int64      `json:"recipientId"`
	Content     string     `json:"content"`
	IsRead      bool       `json:"isRead"`
	DateRead    *time.Time `json:"dateRead,omitempty"`
	MessageSent time.Time  `json:"messageSent"`
}

func toUserSummary(u user.User, photoURL string) userSummary {
	return userSummary{
		ID:         u.ID,
		Username:   u.Username,
		KnownAs:    u.KnownAs,
		Age:        u.Age(time.Now().UTC()),
		Gender:     u.Gender,
		City:       u.City,
		Country:    u.Country,
		Created:    u.Created,
		LastActive: u.LastActive,
		PhotoURL:   photoURL,
	}
}

func toUserDetail(d users.Detail) userDetail {
	photos := make([]photoResponse, 0, len(d.Photos))
	mainURL := ""
	for _, p := range d.Photos {
		if p.IsMain && p.IsApproved {
			mainURL = p.URL
		}
		photos = append(photos, toPhotoResponse(p))
	}
	return userDetail{
		userSummary:  toUserSummary(d.User, mainURL),
		Introduction: d.User.Introduction,
		LookingFor:   d.User.LookingFor,
		Interests:    d.User.Interests,
		Photos:       photos,
	}
}

func toPhotoResponse(p photo.Photo) photoResponse {
	return photoResponse{
		ID:          p.ID,
		URL:         p.URL,
		Description: p.Description,
		DateAdded:   p.DateAdded,
		IsMain:      p.IsMain,
		IsApproved:  p.IsApproved,
	}
}

func toMessageResponse(m message.Message) messageResponse {
	return messageResponse{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Content:     m.Content,
		IsRead:      m.IsRead,
		DateRead:    m.DateRead,
		MessageSent: m.MessageSent,
	}
}
