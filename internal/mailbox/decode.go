package mailbox

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
	"time"

	"github.com/SilverRainZ/loveletter/internal/archive"
)

// Decode parses a raw RFC 5322 message into an archive message. The
// subject and address headers are RFC 2047 decoded. Only the plain text
// body is kept; multipart messages contribute their first text/plain
// part.
func Decode(raw []byte) (archive.Message, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return archive.Message{}, fmt.Errorf("read message: %w", err)
	}
	header := msg.Header

	date, err := mail.ParseDate(header.Get("Date"))
	if err != nil {
		date = time.Now().UTC()
	}

	body, err := textBody(msg)
	if err != nil {
		return archive.Message{}, fmt.Errorf("extract body: %w", err)
	}

	return archive.Message{
		From:    decodeHeader(header.Get("From")),
		To:      decodeHeader(header.Get("To")),
		Subject: decodeHeader(header.Get("Subject")),
		Date:    date,
		Body:    strings.TrimSpace(body),
	}, nil
}

// textBody returns the plain text content of the message. A message
// without a Content-Type is treated as plain text.
func textBody(msg *mail.Message) (string, error) {
	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		data, err := io.ReadAll(msg.Body)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("parse content type %q: %w", contentType, err)
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return textPart(msg.Body, params["boundary"])
	}
	if !strings.HasPrefix(mediaType, "text/") {
		return "", fmt.Errorf("unsupported content type %q", mediaType)
	}
	return decodePart(msg.Body, msg.Header.Get("Content-Transfer-Encoding"))
}

// textPart walks a multipart body and returns the first text/plain
// part, descending into nested multiparts.
func textPart(body io.Reader, boundary string) (string, error) {
	mr := multipart.NewReader(body, boundary)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		mediaType, params, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err != nil {
			continue
		}
		switch {
		case mediaType == "text/plain":
			return decodePart(part, part.Header.Get("Content-Transfer-Encoding"))
		case strings.HasPrefix(mediaType, "multipart/"):
			nested, err := textPart(part, params["boundary"])
			if err == nil && nested != "" {
				return nested, nil
			}
		}
	}
	return "", fmt.Errorf("no text/plain part found")
}

// decodePart reads a body part, undoing its transfer encoding.
func decodePart(body io.Reader, transferEncoding string) (string, error) {
	switch strings.ToLower(transferEncoding) {
	case "quoted-printable":
		body = quotedprintable.NewReader(body)
	case "base64":
		body = base64.NewDecoder(base64.StdEncoding, body)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeHeader undoes RFC 2047 encoded words, falling back to the raw
// header when decoding fails.
func decodeHeader(header string) string {
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}
