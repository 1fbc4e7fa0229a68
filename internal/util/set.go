/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package util

// Set is an unordered collection of comparable values.
type Set[T comparable] map[T]struct{}

func NewSet[T comparable](capacity int) Set[T] {
	return make(Set[T], capacity)
}

func (s Set[T]) Add(v T) {
	s[v] = struct{}{}
}

func (s Set[T]) Has(v T) bool {
	_, ok := s[v]
	return ok
}

// Insert adds v and reports whether it was absent before the call.
func (s Set[T]) Insert(v T) bool {
	if s.Has(v) {
		return false
	}
	s.Add(v)
	return true
}

// Unique returns the elements of in with later duplicates removed. The first
// occurrence of each key keeps its position.
func Unique[E any, K comparable](in []E, key func(E) K) []E {
	seen := NewSet[K](len(in))
	out := make([]E, 0, len(in))
	for _, e := range in {
		if seen.Insert(key(e)) {
			out = append(out, e)
		}
	}
	return out
}
