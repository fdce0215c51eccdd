package alerts

import (
	"bufio"
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
	"time"

	"golang.org/x/net/html/charset"
)

// SplitMbox splits an mbox stream into raw messages. Every line starting
// with "From " opens a new message; body lines of that shape are expected
// to be escaped as ">From ".
func SplitMbox(r io.Reader) ([][]byte, error) {
	br := bufio.NewReader(r)
	var (
		msgs [][]byte
		cur  *bytes.Buffer
	)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			if strings.HasPrefix(line, "From ") {
				if cur != nil {
					msgs = append(msgs, cur.Bytes())
				}
				cur = &bytes.Buffer{}
			} else if cur != nil {
				if strings.HasPrefix(line, ">From ") {
					line = line[1:]
				}
				cur.WriteString(line)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("alerts: read mbox: %w", err)
		}
	}
	if cur != nil {
		msgs = append(msgs, cur.Bytes())
	}
	return msgs, nil
}

// Message is a parsed alert email.
type Message struct {
	Subject  string
	Date     *time.Time
	Articles []Article
}

// ParseMessage reads one raw message and extracts the articles from its
// HTML body. A message without an HTML part has no articles.
func ParseMessage(raw []byte) (Message, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return Message{}, fmt.Errorf("alerts: read message: %w", err)
	}
	dec := &mime.WordDecoder{CharsetReader: charset.NewReaderLabel}
	subject, err := dec.DecodeHeader(msg.Header.Get("Subject"))
	if err != nil {
		subject = msg.Header.Get("Subject")
	}
	m := Message{Subject: subject}
	if d, err := msg.Header.Date(); err == nil {
		m.Date = &d
	}

	body, err := htmlPart(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body)
	if err != nil || body == nil {
		return m, err
	}
	m.Articles, err = ExtractArticles(body)
	return m, err
}

// htmlPart returns a decoded reader over the first text/html part, or nil.
func htmlPart(contentType, encoding string, body io.Reader) (io.Reader, error) {
	mt, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = "text/plain"
	}
	if strings.HasPrefix(mt, "multipart/") {
		mr := multipart.NewReader(body, params["boundary"])
		for {
			p, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			if err != nil {
				return nil, fmt.Errorf("alerts: multipart: %w", err)
			}
			// NextPart already undoes quoted-printable and drops the header.
			r, err := htmlPart(p.Header.Get("Content-Type"), p.Header.Get("Content-Transfer-Encoding"), p)
			if err != nil || r != nil {
				return r, err
			}
		}
	}
	if mt != "text/html" {
		return nil, nil
	}

	var r io.Reader = body
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, body)
	case "quoted-printable":
		r = quotedprintable.NewReader(body)
	}
	label := params["charset"]
	if label == "" {
		label = "utf-8"
	}
	cr, err := charset.NewReaderLabel(label, r)
	if err != nil {
		// Unknown charset: read the bytes as they are.
		return r, nil
	}
	return cr, nil
}
