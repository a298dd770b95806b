package mailtm

import (
	"encoding/json"
	"strings"
)

// State holds the bearer token of a Mail.tm account.
type State struct {
	Token   string `json:"token"`
	Address string `json:"address"`
}

// Provider implements provider.State.
func (State) Provider() string {
	return Name
}

// collection is the hydra list envelope returned by listing endpoints.
type collection[T any] struct {
	Members []T `json:"hydra:member"`
}

type domain struct {
	ID       string `json:"id"`
	Domain   string `json:"domain"`
	IsActive bool   `json:"isActive"`
}

type credentials struct {
	Address  string `json:"address"`
	Password string `json:"password"`
}

type tokenResponse struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

type sender struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func (s sender) String() string {
	if s.Address != "" {
		return s.Address
	}
	return s.Name
}

type message struct {
	ID         string `json:"id"`
	From       sender `json:"from"`
	Subject    string `json:"subject"`
	ReceivedAt string `json:"receivedAt"`
	CreatedAt  string `json:"createdAt"`
}

func (m message) date() string {
	if m.ReceivedAt != "" {
		return m.ReceivedAt
	}
	return m.CreatedAt
}

type attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type messageDetail struct {
	message
	Text        string       `json:"text"`
	HTML        htmlBody     `json:"html"`
	Attachments []attachment `json:"attachments"`
}

type source struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

// htmlBody accepts the html field either as a string or as a list of
// strings, which is what the live API returns.
type htmlBody string

func (h *htmlBody) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*h = htmlBody(s)
		return nil
	}
	var parts []string
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	*h = htmlBody(strings.Join(parts, "\n"))
	return nil
}
