package chat

import "fmt"

// Attachment is a file uploaded alongside a message
type Attachment struct {
	Name string
	Data []byte
}

// AudioClip is a recorded voice message to transcribe
type AudioClip struct {
	Name string
	Data []byte
}

// Input is what the user submitted in one compose action.
// Files are a side channel; at most one of Text or Audio is sent.
type Input struct {
	Text  string
	Files []Attachment
	Audio *AudioClip
}

// UploadRequest is one attachment upload
type UploadRequest struct {
	UserID    string
	SessionID string
	AgentName string
	File      Attachment
}

// Feedback rates an assistant turn
type Feedback struct {
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
	MessageID string `json:"messageId"`
	SessionID string `json:"sessionId"`
	AgentName string `json:"agentName"`
}

// FileError reports a failed upload
type FileError struct {
	Name string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

// SendResult describes what a Send did
type SendResult struct {
	Uploaded   []string
	Failed     []FileError
	Transcript string
	Turn       *Turn // Human turn sent over the socket, nil if nothing was sent
}

// Sent returns true if a message went over the socket
func (r *SendResult) Sent() bool {
	return r != nil && r.Turn != nil
}
