/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package tss

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kentakayama/cryptex-over-http/internal/plist"
)

// STATUS=<digits>&MESSAGE=<token>[&REQUEST_STRING=<anything, newlines included>]
var replyPattern = regexp.MustCompile(`(?s)^STATUS=(\d+)&MESSAGE=([A-Za-z0-9_\-%]*)(?:&REQUEST_STRING=(.*))?$`)

// StatusOK is the only status carrying a ticket.
const StatusOK = 0

// Reply is a signing authority reply that matched the grammar.
type Reply struct {
	Status int
	// RawMessage is the MESSAGE field as sent, Message its percent-decoded
	// form (equal to RawMessage when it does not decode).
	RawMessage string
	Message    string
	// Body is the REQUEST_STRING field, nil when the field is absent.
	Body []byte
}

// DecodeReply checks the reply text against the grammar and splits it into
// its fields. It does not interpret the status.
func DecodeReply(body []byte) (*Reply, error) {
	if len(body) == 0 {
		return nil, ErrEmptyReply
	}
	if !utf8.Valid(body) {
		return nil, ErrDecodeFailure
	}

	text := string(body)
	m := replyPattern.FindStringSubmatchIndex(text)
	if m == nil {
		return nil, ErrBadReplyStart
	}

	status, err := strconv.Atoi(text[m[2]:m[3]])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStatus, err)
	}

	r := &Reply{
		Status:     status,
		RawMessage: text[m[4]:m[5]],
	}
	r.Message = r.RawMessage
	if decoded, err := url.PathUnescape(r.RawMessage); err == nil {
		r.Message = decoded
	}
	if m[6] >= 0 {
		r.Body = []byte(text[m[6]:m[7]])
	}
	return r, nil
}

// ParseReply extracts the ticket from a signing authority reply. Checks run
// in a fixed order and the first failing one determines the error.
func ParseReply(body []byte) ([]byte, error) {
	r, err := DecodeReply(body)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusOK {
		return nil, &BadStatusError{Code: r.Status, Message: r.RawMessage}
	}
	if r.Body == nil {
		return nil, ErrNoBody
	}

	doc, err := plist.UnmarshalDict(r.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReplyNotADocument, err)
	}
	ticket, ok := doc.GetData(KeyApImg4Ticket)
	if !ok {
		return nil, ErrNoSignatureInReply
	}
	return ticket, nil
}

// FormatReply renders a reply in the grammar ParseReply accepts. The message
// is percent-encoded down to the grammar's token alphabet and doc, when
// non-nil, becomes the REQUEST_STRING body.
func FormatReply(status int, message string, doc *plist.Dict) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "STATUS=%d&MESSAGE=%s", status, encodeMessage(message))
	if doc != nil {
		encoded, err := plist.MarshalDict(*doc)
		if err != nil {
			return nil, err
		}
		b.WriteString("&REQUEST_STRING=")
		b.Write(encoded)
	}
	return []byte(b.String()), nil
}

// TicketReply is FormatReply for a successful exchange.
func TicketReply(ticket []byte) ([]byte, error) {
	var doc plist.Dict
	doc.Set(KeyApImg4Ticket, plist.Data(ticket))
	return FormatReply(StatusOK, "SUCCESS", &doc)
}

func encodeMessage(message string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(message); i++ {
		c := message[i]
		switch {
		case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9', c == '_', c == '-':
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
		}
	}
	return b.String()
}
