/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package util

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// RenderCBORPretty decodes a single CBOR data item and renders it as indented
// JSON for logs and the inspect command. Byte strings become h'..' strings,
// integer map keys become their decimal text and tags become
// {"_cborTag": n, "content": ...}.
func RenderCBORPretty(raw []byte) (string, error) {
	var decoded any
	if err := cbor.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode CBOR: %w", err)
	}
	pretty, err := json.MarshalIndent(jsonable(decoded), "", "  ")
	if err != nil {
		return "", err
	}
	return string(pretty), nil
}

func jsonable(value any) any {
	switch v := value.(type) {
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = jsonable(elem)
		}
		return out
	case map[any]any:
		// encoding/json sorts map[string] keys itself
		out := make(map[string]any, len(v))
		for key, val := range v {
			out[cborKeyString(key)] = jsonable(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			out[key] = jsonable(val)
		}
		return out
	case []byte:
		return fmt.Sprintf("h'%x'", v)
	case cbor.Tag:
		return map[string]any{
			"_cborTag": v.Number,
			"content":  jsonable(v.Content),
		}
	default:
		return v
	}
}

func cborKeyString(key any) string {
	switch k := key.(type) {
	case string:
		return k
	case []byte:
		return fmt.Sprintf("h'%x'", k)
	default:
		return fmt.Sprint(k)
	}
}
