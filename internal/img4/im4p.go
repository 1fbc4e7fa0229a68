/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package img4

import (
	"fmt"
	"math"
)

const (
	tagSequence    = 0x30
	tagIA5String   = 0x16
	tagOctetString = 0x04
	longFormFlag   = 0x80
)

// Tags carried by a loadable trust cache payload.
const (
	TypeIM4P        = "IM4P"
	TypeTrustCache  = "ltrs"
	DescriptionCptx = "cptx"
)

// Container is a decoded IM4P payload wrapper.
type Container struct {
	Type        string
	Subtype     string
	Description string
	Payload     []byte
}

// countBytes returns the minimal number of big-endian bytes needed to hold n.
func countBytes(n uint32) int {
	switch {
	case n>>24 != 0:
		return 4
	case n>>16 != 0:
		return 3
	case n>>8 != 0:
		return 2
	default:
		return 1
	}
}

// appendLength appends the long-form DER length of n, always using the
// 0x80|count prefix even for values that would fit the short form.
func appendLength(out []byte, n uint32) []byte {
	count := countBytes(n)
	out = append(out, longFormFlag|byte(count))
	for i := count - 1; i >= 0; i-- {
		out = append(out, byte(n>>(8*i)))
	}
	return out
}

func appendIA5(out []byte, s string) []byte {
	out = append(out, tagIA5String, byte(len(s)))
	return append(out, s...)
}

// WrapTrustCache wraps a serialized trust cache as an IM4P "ltrs"/"cptx"
// payload.
func WrapTrustCache(trustCache []byte) []byte {
	return Encode(TypeTrustCache, DescriptionCptx, trustCache)
}

// Encode builds an IM4P container with four-character subtype and
// description tags. Both tags must be exactly four bytes and the payload
// must fit a 32-bit length.
func Encode(subtype, description string, payload []byte) []byte {
	if len(subtype) != 4 || len(description) != 4 {
		panic(fmt.Sprintf("img4: tags must be 4 bytes, got %q and %q", subtype, description))
	}
	if uint64(len(payload)) > math.MaxUint32-32 {
		panic(fmt.Sprintf("img4: payload of %d bytes does not fit a 32-bit length", len(payload)))
	}

	inner := uint32(len(payload))
	countInner := countBytes(inner)
	// three 6-byte IA5String tags, the OCTET STRING tag and its length prefix
	outer := inner + 20 + uint32(countInner)

	out := make([]byte, 0, 2+countBytes(outer)+int(outer))
	out = append(out, tagSequence)
	out = appendLength(out, outer)
	out = appendIA5(out, TypeIM4P)
	out = appendIA5(out, subtype)
	out = appendIA5(out, description)
	out = append(out, tagOctetString)
	out = appendLength(out, inner)
	return append(out, payload...)
}

// Decode parses an IM4P container. Short- and long-form lengths are both
// accepted, including non-minimal long forms as produced by Encode.
func Decode(data []byte) (*Container, error) {
	r := reader{data: data}

	seqLen, err := r.header(tagSequence)
	if err != nil {
		return nil, fmt.Errorf("outer sequence: %w", err)
	}
	if seqLen != r.remaining() {
		return nil, fmt.Errorf("%w: sequence length %d, %d bytes follow", ErrMalformed, seqLen, r.remaining())
	}

	var c Container
	fields := []*string{&c.Type, &c.Subtype, &c.Description}
	for i, field := range fields {
		s, err := r.ia5()
		if err != nil {
			return nil, fmt.Errorf("tag %d: %w", i, err)
		}
		*field = s
	}
	if c.Type != TypeIM4P {
		return nil, fmt.Errorf("%w: %q", ErrNotIM4P, c.Type)
	}

	payloadLen, err := r.header(tagOctetString)
	if err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	payload, err := r.take(payloadLen)
	if err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	// optional trailing elements (keybags, compression info) are ignored
	c.Payload = payload
	return &c, nil
}

type reader struct {
	data []byte
	off  int
}

func (r *reader) remaining() int {
	return len(r.data) - r.off
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || n > r.remaining() {
		return nil, fmt.Errorf("%w: need %d bytes, %d left", ErrTruncated, n, r.remaining())
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) header(tag byte) (int, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	if b[0] != tag {
		return 0, fmt.Errorf("%w: expected tag 0x%02x, got 0x%02x", ErrUnexpectedTag, tag, b[0])
	}
	if b[1]&longFormFlag == 0 {
		return int(b[1]), nil
	}
	count := int(b[1] &^ longFormFlag)
	if count == 0 || count > 4 {
		return 0, fmt.Errorf("%w: %d length bytes", ErrBadLength, count)
	}
	lenBytes, err := r.take(count)
	if err != nil {
		return 0, err
	}
	var n uint64
	for _, lb := range lenBytes {
		n = n<<8 | uint64(lb)
	}
	if n > uint64(r.remaining()) {
		return 0, fmt.Errorf("%w: length %d, %d bytes left", ErrTruncated, n, r.remaining())
	}
	return int(n), nil
}

func (r *reader) ia5() (string, error) {
	n, err := r.header(tagIA5String)
	if err != nil {
		return "", err
	}
	b, err := r.take(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
