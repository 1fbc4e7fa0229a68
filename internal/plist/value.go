/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package plist

import (
	"bytes"
	"fmt"
	"math"
)

// Kind identifies the type held by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindBoolean
	KindInteger
	KindData
	KindArray
	KindDict
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindData:
		return "data"
	case KindArray:
		return "array"
	case KindDict:
		return "dict"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(k))
	}
}

// Value is a property list leaf or container. The zero Value is invalid and
// is rejected by the encoder.
type Value struct {
	kind Kind
	str  string
	b    bool
	// integers keep their 64-bit pattern; neg marks a negative int64
	num  uint64
	neg  bool
	data []byte
	arr  []Value
	dict Dict
}

func String(s string) Value { return Value{kind: KindString, str: s} }

func Bool(b bool) Value { return Value{kind: KindBoolean, b: b} }

func Int(i int64) Value {
	return Value{kind: KindInteger, num: uint64(i), neg: i < 0}
}

func Uint(u uint64) Value { return Value{kind: KindInteger, num: u} }

// Data wraps a byte string. The slice is copied.
func Data(b []byte) Value {
	return Value{kind: KindData, data: bytes.Clone(nonNil(b))}
}

func Array(items ...Value) Value {
	return Value{kind: KindArray, arr: append([]Value(nil), items...)}
}

func DictValue(d Dict) Value { return Value{kind: KindDict, dict: d} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBoolean
}

// AsUint64 reports the integer value if it is non-negative.
func (v Value) AsUint64() (uint64, bool) {
	if v.kind != KindInteger || v.neg {
		return 0, false
	}
	return v.num, true
}

// AsInt64 reports the integer value if it fits in an int64.
func (v Value) AsInt64() (int64, bool) {
	if v.kind != KindInteger {
		return 0, false
	}
	if !v.neg && v.num > math.MaxInt64 {
		return 0, false
	}
	return int64(v.num), true
}

func (v Value) AsData() ([]byte, bool) {
	return v.data, v.kind == KindData
}

func (v Value) AsArray() ([]Value, bool) {
	return v.arr, v.kind == KindArray
}

func (v Value) AsDict() (Dict, bool) {
	return v.dict, v.kind == KindDict
}

// Equal reports deep equality. Dictionaries compare independent of key order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindBoolean:
		return v.b == o.b
	case KindInteger:
		return v.num == o.num && v.neg == o.neg
	case KindData:
		return bytes.Equal(v.data, o.data)
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case KindDict:
		return v.dict.Equal(o.dict)
	default:
		return true
	}
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

type dictEntry struct {
	key   string
	value Value
}

// Dict is an insertion-ordered mapping of string keys to Values.
type Dict struct {
	entries []dictEntry
}

// Set replaces the value stored under key, or appends it.
func (d *Dict) Set(key string, v Value) {
	for i := range d.entries {
		if d.entries[i].key == key {
			d.entries[i].value = v
			return
		}
	}
	d.entries = append(d.entries, dictEntry{key: key, value: v})
}

func (d Dict) Get(key string) (Value, bool) {
	for _, e := range d.entries {
		if e.key == key {
			return e.value, true
		}
	}
	return Value{}, false
}

func (d Dict) Len() int { return len(d.entries) }

// Keys returns the keys in insertion order.
func (d Dict) Keys() []string {
	keys := make([]string, len(d.entries))
	for i, e := range d.entries {
		keys[i] = e.key
	}
	return keys
}

func (d Dict) Equal(o Dict) bool {
	if d.Len() != o.Len() {
		return false
	}
	for _, e := range d.entries {
		ov, ok := o.Get(e.key)
		if !ok || !e.value.Equal(ov) {
			return false
		}
	}
	return true
}

func (d Dict) GetString(key string) (string, bool) {
	v, ok := d.Get(key)
	if !ok {
		return "", false
	}
	return v.AsString()
}

func (d Dict) GetBool(key string) (bool, bool) {
	v, ok := d.Get(key)
	if !ok {
		return false, false
	}
	return v.AsBool()
}

func (d Dict) GetUint64(key string) (uint64, bool) {
	v, ok := d.Get(key)
	if !ok {
		return 0, false
	}
	return v.AsUint64()
}

func (d Dict) GetData(key string) ([]byte, bool) {
	v, ok := d.Get(key)
	if !ok {
		return nil, false
	}
	return v.AsData()
}

func (d Dict) GetDict(key string) (Dict, bool) {
	v, ok := d.Get(key)
	if !ok {
		return Dict{}, false
	}
	return v.AsDict()
}
