package extractor

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
)

// decodeHTML returns the HTML body of payload. Payloads that do not parse as
// a mail message with a Content-Type header are returned unchanged.
func decodeHTML(payload []byte) ([]byte, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(payload))
	if err != nil || msg.Header.Get("Content-Type") == "" {
		return payload, nil
	}
	body, found, err := findHTMLPart(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.New("message has no text/html part")
	}
	return body, nil
}

func findHTMLPart(contentType, encoding string, body io.Reader) ([]byte, bool, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, false, fmt.Errorf("parse content type: %w", err)
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := multipart.NewReader(body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				return nil, false, nil
			}
			if err != nil {
				return nil, false, fmt.Errorf("read multipart: %w", err)
			}
			b, found, err := findHTMLPart(part.Header.Get("Content-Type"), part.Header.Get("Content-Transfer-Encoding"), part)
			if err != nil || found {
				return b, found, err
			}
		}
	}

	if mediaType != "text/html" {
		return nil, false, nil
	}
	b, err := io.ReadAll(transferDecoder(encoding, body))
	if err != nil {
		return nil, false, fmt.Errorf("read html part: %w", err)
	}
	return b, true, nil
}

func transferDecoder(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, newlineStripper{r})
	default:
		return r
	}
}

// newlineStripper drops CR and LF so base64 bodies wrapped at 76 columns decode.
type newlineStripper struct{ r io.Reader }

func (n newlineStripper) Read(p []byte) (int, error) {
	for {
		k, err := n.r.Read(p)
		j := 0
		for _, c := range p[:k] {
			if c != '\r' && c != '\n' {
				p[j] = c
				j++
			}
		}
		if j > 0 || err != nil {
			return j, err
		}
	}
}
