package entity

// AnchorPosition is the viewport-relative rectangle of a text selection,
// used to place the floating comment affordance next to it.
type AnchorPosition struct {
	Top   float64 `json:"top"`
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// Selection is the ephemeral captured text selection. Overwritten on each
// new selection, cleared on dismissal or when consumed by a submitted comment.
type Selection struct {
	Text           string         `json:"text"`
	AnchorPosition AnchorPosition `json:"anchor_position"`
}

// Identity carries the authenticated user fields attached to the
// connection handshake. Token is the bearer credential current at open time.
type Identity struct {
	UserId      string
	UserName    string
	Email       string
	DisplayName string
	Token       string
}
