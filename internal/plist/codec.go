/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package plist

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"

	hplist "howett.net/plist"
)

const (
	xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
		`<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">` + "\n" +
		`<plist version="1.0">` + "\n"
	xmlFooter = "</plist>\n"
)

// Marshal encodes v as an XML property list. Dictionary keys are emitted in
// ascending byte order, so equal documents always produce identical bytes.
func Marshal(v Value) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xmlHeader)
	if err := writeValue(&buf, v, 0); err != nil {
		return nil, err
	}
	buf.WriteString(xmlFooter)
	return buf.Bytes(), nil
}

func MarshalDict(d Dict) ([]byte, error) {
	return Marshal(DictValue(d))
}

func writeValue(buf *bytes.Buffer, v Value, depth int) error {
	indent := strings.Repeat("\t", depth)
	switch v.kind {
	case KindString:
		buf.WriteString(indent + "<string>")
		if err := xml.EscapeText(buf, []byte(v.str)); err != nil {
			return err
		}
		buf.WriteString("</string>\n")
	case KindBoolean:
		if v.b {
			buf.WriteString(indent + "<true/>\n")
		} else {
			buf.WriteString(indent + "<false/>\n")
		}
	case KindInteger:
		var s string
		if v.neg {
			s = strconv.FormatInt(int64(v.num), 10)
		} else {
			s = strconv.FormatUint(v.num, 10)
		}
		buf.WriteString(indent + "<integer>" + s + "</integer>\n")
	case KindData:
		buf.WriteString(indent + "<data>" + base64.StdEncoding.EncodeToString(v.data) + "</data>\n")
	case KindArray:
		if len(v.arr) == 0 {
			buf.WriteString(indent + "<array/>\n")
			return nil
		}
		buf.WriteString(indent + "<array>\n")
		for _, item := range v.arr {
			if err := writeValue(buf, item, depth+1); err != nil {
				return err
			}
		}
		buf.WriteString(indent + "</array>\n")
	case KindDict:
		if v.dict.Len() == 0 {
			buf.WriteString(indent + "<dict/>\n")
			return nil
		}
		keys := v.dict.Keys()
		sort.Strings(keys)
		buf.WriteString(indent + "<dict>\n")
		for _, k := range keys {
			buf.WriteString(indent + "\t<key>")
			if err := xml.EscapeText(buf, []byte(k)); err != nil {
				return err
			}
			buf.WriteString("</key>\n")
			item, _ := v.dict.Get(k)
			if err := writeValue(buf, item, depth+1); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
		}
		buf.WriteString(indent + "</dict>\n")
	default:
		return fmt.Errorf("%w: %v", ErrInvalidValue, v.kind)
	}
	return nil
}

// Unmarshal decodes an XML, binary or OpenStep property list.
func Unmarshal(data []byte) (Value, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Value{}, fmt.Errorf("%w: empty input", ErrMalformed)
	}
	var raw any
	if _, err := hplist.Unmarshal(data, &raw); err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return fromNative(raw)
}

// UnmarshalDict decodes a property list whose root must be a dictionary.
func UnmarshalDict(data []byte) (Dict, error) {
	v, err := Unmarshal(data)
	if err != nil {
		return Dict{}, err
	}
	d, ok := v.AsDict()
	if !ok {
		return Dict{}, fmt.Errorf("%w: root is %v", ErrNotADict, v.kind)
	}
	return d, nil
}

func fromNative(raw any) (Value, error) {
	switch x := raw.(type) {
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case uint64:
		return Uint(x), nil
	case int64:
		return Int(x), nil
	case []byte:
		return Data(x), nil
	case []any:
		items := make([]Value, 0, len(x))
		for i, elem := range x {
			v, err := fromNative(elem)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items = append(items, v)
		}
		return Array(items...), nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var d Dict
		for _, k := range keys {
			v, err := fromNative(x[k])
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", k, err)
			}
			d.Set(k, v)
		}
		return DictValue(d), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedType, raw)
	}
}
