/*
 * Copyright 2025 tessera-db.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
)

// Attrs is a plain attribute mapping keyed by column name. It is the shape
// domain models dump to and load from, and the shape write operations accept.
type Attrs map[string]any

// Filters maps column names to filter values. A scalar value means equality,
// a slice of scalars means membership ("column is one of these values").
// All entries are combined conjunctively.
type Filters map[string]any

// Clone returns a shallow copy of the attribute mapping.
func (a Attrs) Clone() Attrs {
	if a == nil {
		return nil
	}
	out := make(Attrs, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Pick returns a copy of the mapping restricted to the given keys.
func (a Attrs) Pick(keys ...string) Attrs {
	out := make(Attrs, len(keys))
	for _, k := range keys {
		if v, ok := a[k]; ok {
			out[k] = v
		}
	}
	return out
}

// IsPrimitive reports whether v is a legal scalar filter value: text, UUID,
// integer, float, or boolean.
func IsPrimitive(v any) bool {
	switch v.(type) {
	case string, uuid.UUID, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

// IsMembership reports whether v is a slice or array of scalar filter values.
// []byte is text data, not a membership list.
func IsMembership(v any) bool {
	if _, ok := v.([]byte); ok {
		return false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if !IsPrimitive(rv.Index(i).Interface()) {
			return false
		}
	}
	return true
}

// Validate checks that every filter value is either a scalar or a membership
// list of scalars.
func (f Filters) Validate() error {
	for col, v := range f {
		if v == nil {
			continue
		}
		if !IsPrimitive(v) && !IsMembership(v) {
			return fmt.Errorf("filter %q: unsupported value type %T", col, v)
		}
	}
	return nil
}

// DecodeAttrs decodes an attribute mapping into a struct using `attr` field
// tags. Identifier-ish values (UUIDs, timestamps) pass through or are parsed
// from their textual form.
func DecodeAttrs(attrs Attrs, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "attr",
		Result:     out,
		DecodeHook: attrDecodeHook,
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]any(attrs))
}

func attrDecodeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	switch to {
	case reflect.TypeOf(uuid.UUID{}):
		switch v := data.(type) {
		case uuid.UUID:
			return v, nil
		case string:
			return uuid.Parse(v)
		case []byte:
			return uuid.ParseBytes(v)
		}
	case reflect.TypeOf(time.Time{}):
		switch v := data.(type) {
		case time.Time:
			return v, nil
		case string:
			return time.Parse(time.RFC3339Nano, v)
		}
	}
	return data, nil
}
