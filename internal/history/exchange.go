package history

import "time"

// Exchange is one completed question/answer pair. It is only appended once
// both sides are filled; a failed request never produces an Exchange.
type Exchange struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}
