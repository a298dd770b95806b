package onesecmail

import (
	"bytes"
	"encoding/json"
	"strings"
)

// State identifies a 1secmail mailbox. The API has no credentials; the
// login/domain pair is the whole address.
type State struct {
	Login  string `json:"login"`
	Domain string `json:"domain"`
}

// Provider implements provider.State.
func (State) Provider() string {
	return Name
}

// messageID accepts both numeric and string ids.
type messageID string

func (id *messageID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = messageID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = messageID(strings.TrimSpace(n.String()))
	return nil
}

type messageEntry struct {
	ID      messageID `json:"id"`
	From    string    `json:"from"`
	Subject string    `json:"subject"`
	Date    string    `json:"date"`
}

type attachmentEntry struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type messageDetail struct {
	messageEntry
	TextBody    string            `json:"textBody"`
	HTMLBody    string            `json:"htmlBody"`
	Attachments []attachmentEntry `json:"attachments"`
}
