// Package rawmail parses raw RFC 822 message sources into headers, bodies
// and attachment summaries.
package rawmail

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.io/infrasutra/tempinbox/internal/provider"
)

// Header is a single decoded header field, in source order.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Message is the parsed view of a raw source.
type Message struct {
	Headers     []Header              `json:"headers"`
	From        string                `json:"from"`
	To          []string              `json:"to"`
	Cc          []string              `json:"cc"`
	Subject     string                `json:"subject"`
	Date        time.Time             `json:"date"`
	TextBody    string                `json:"textBody"`
	HTMLBody    string                `json:"htmlBody"`
	Attachments []provider.Attachment `json:"attachments"`
	Size        int64                 `json:"size"`
}

// Parse reads raw as an RFC 822 message. Headers are always returned when
// the header block parses; a malformed body yields the partial message and
// the error.
func Parse(raw []byte) (Message, error) {
	msg := Message{
		Headers:     []Header{},
		To:          []string{},
		Cc:          []string{},
		Attachments: []provider.Attachment{},
		Size:        int64(len(raw)),
	}

	reader, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return msg, fmt.Errorf("parse message header: %w", err)
	}
	defer reader.Close()

	fields := reader.Header.Fields()
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		msg.Headers = append(msg.Headers, Header{Name: fields.Key(), Value: value})
	}

	if subject, err := reader.Header.Subject(); err == nil {
		msg.Subject = subject
	}
	if fromList, err := reader.Header.AddressList("From"); err == nil && len(fromList) > 0 {
		msg.From = formatAddress(fromList[0])
	}
	msg.To = addressList(reader.Header, "To")
	msg.Cc = addressList(reader.Header, "Cc")
	if date, err := reader.Header.Date(); err == nil {
		msg.Date = date
	}

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return msg, fmt.Errorf("parse message part: %w", err)
		}

		switch header := part.Header.(type) {
		case *mail.InlineHeader:
			mediaType, _, _ := header.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			switch {
			case strings.HasPrefix(mediaType, "text/plain") || mediaType == "":
				msg.TextBody = appendBody(msg.TextBody, body)
			case strings.HasPrefix(mediaType, "text/html"):
				msg.HTMLBody = appendBody(msg.HTMLBody, body)
			}
		case *mail.AttachmentHeader:
			filename, _ := header.Filename()
			if strings.TrimSpace(filename) == "" {
				filename = "attachment"
			}
			contentType, _, _ := header.ContentType()
			n, err := io.Copy(io.Discard, part.Body)
			if err != nil {
				continue
			}
			msg.Attachments = append(msg.Attachments, provider.Attachment{
				Filename:    filename,
				ContentType: contentType,
				Size:        n,
			})
		}
	}

	return msg, nil
}

// Lookup returns the first header value for name, case-insensitively.
func (m Message) Lookup(name string) string {
	for _, h := range m.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func appendBody(current string, body []byte) string {
	if current == "" {
		return string(body)
	}
	return current + "\n" + string(body)
}

func addressList(h mail.Header, key string) []string {
	out := []string{}
	list, err := h.AddressList(key)
	if err != nil {
		return out
	}
	for _, addr := range list {
		out = append(out, formatAddress(addr))
	}
	return out
}

func formatAddress(addr *mail.Address) string {
	if addr.Name == "" {
		return addr.Address
	}
	return addr.Name + " <" + addr.Address + ">"
}
