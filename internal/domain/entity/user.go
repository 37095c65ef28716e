package entity

// UserProfile is the minimal profile shape the chat service needs for
// rendering a counterpart: display name and avatar reference.
type UserProfile struct {
	ID       string `json:"id" firestore:"id"`
	Username string `json:"username" firestore:"username"`
	Email    string `json:"email,omitempty" firestore:"email,omitempty"`
	PhotoURL string `json:"photo_url,omitempty" firestore:"photoUrl,omitempty"`
}
