// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"mime/multipart"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
	"gorm.io/datatypes"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

// multipartMemory is the part of a multipart form kept in memory.
const multipartMemory = 8 << 20

var (
	errBodyTooLarge = errors.New("request body too large")
	errInvalidBody  = errors.New("invalid request body")
)

// payload is a request body keyed by json field name.
type payload map[string]any

// protectedKeys are never taken from a request body.
var protectedKeys = []string{"id", "createdAt", "updatedAt"}

func (p payload) strip(keys ...string) {
	for _, k := range keys {
		delete(p, k)
	}
}

// has reports whether key was sent.
func (p payload) has(key string) bool {
	_, ok := p[key]
	return ok
}

// readPayload reads a JSON, multipart or urlencoded body. Files are only
// returned for multipart bodies.
func (h *Handler) readPayload(w http.ResponseWriter, r *http.Request) (payload, map[string][]*multipart.FileHeader, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartMemory)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, nil, bodyError(err)
		}
		return formValues(r.MultipartForm.Value), r.MultipartForm.File, nil

	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		if err := r.ParseForm(); err != nil {
			return nil, nil, bodyError(err)
		}
		return formValues(r.PostForm), nil, nil

	default:
		p := payload{}
		if r.Body == nil {
			return p, nil, nil
		}
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
		if err := dec.Decode(&p); err != nil {
			if errors.Is(err, io.EOF) {
				return payload{}, nil, nil
			}
			return nil, nil, bodyError(err)
		}
		if p == nil {
			p = payload{}
		}
		return p, nil, nil
	}
}

func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return errBodyTooLarge
	}
	return fmt.Errorf("%w: %v", errInvalidBody, err)
}

// writeBodyError writes the response for a readPayload failure.
func writeBodyError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		WriteError(w, http.StatusRequestEntityTooLarge, CodeTooLarge, "Request body is too large")
		return
	}
	WriteBadRequest(w, "Invalid request body")
}

// formValues flattens form values: single values stay strings, repeated
// keys and keys ending in "[]" become lists.
func formValues(values map[string][]string) payload {
	p := make(payload, len(values))
	for key, vals := range values {
		list := strings.HasSuffix(key, "[]")
		key = strings.TrimSuffix(key, "[]")
		if len(vals) == 1 && !list {
			p[key] = vals[0]
			continue
		}
		items := make([]any, len(vals))
		for i, v := range vals {
			items[i] = v
		}
		p[key] = items
	}
	return p
}

// decodeInto decodes p onto out, a pointer to a model. Strings from form
// bodies are coerced to the field types.
func decodeInto(p payload, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Squash:           true,
		WeaklyTypedInput: true,
		DecodeHook:       coerceHook,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]any(p))
}

var quotedField = regexp.MustCompile(`'([^']+)'`)

// decodeErrors turns a mapstructure error into field messages.
func decodeErrors(err error) map[string]string {
	var msErr *mapstructure.Error
	msgs := []string{err.Error()}
	if errors.As(err, &msErr) {
		msgs = msErr.Errors
	}

	fields := make(map[string]string, len(msgs))
	for _, msg := range msgs {
		key := "_"
		if m := quotedField.FindStringSubmatch(msg); m != nil {
			key = m[1]
		}
		fields[key] = key + " has an invalid value"
	}
	return fields
}

var (
	timeType    = reflect.TypeOf(time.Time{})
	rawJSONType = reflect.TypeOf(datatypes.JSON{})
)

// coerceHook converts loosely typed input, mostly form strings, to the
// target field type.
func coerceHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to == rawJSONType {
		return toRawJSON(data)
	}

	s, ok := data.(string)
	if !ok {
		return data, nil
	}
	trimmed := strings.TrimSpace(s)
	empty := trimmed == "" || trimmed == "null"

	switch kind := to.Kind(); {
	case kind == reflect.Ptr:
		if empty {
			return nil, nil
		}
		return data, nil

	case to == timeType:
		if empty {
			return time.Time{}, nil
		}
		return cast.ToTimeE(trimmed)

	case kind == reflect.Bool:
		return parseBool(trimmed)

	case kind >= reflect.Int && kind <= reflect.Uint64:
		if empty {
			return 0, nil
		}
		f, err := cast.ToFloat64E(trimmed)
		if err != nil || f != math.Trunc(f) {
			return nil, fmt.Errorf("%q is not a whole number", trimmed)
		}
		return int64(f), nil

	case kind == reflect.Float32 || kind == reflect.Float64:
		if empty {
			return 0.0, nil
		}
		return cast.ToFloat64E(trimmed)

	case kind == reflect.Slice && to.Elem().Kind() != reflect.Uint8:
		if empty {
			return []any{}, nil
		}
		if strings.HasPrefix(trimmed, "[") {
			var v []any
			if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
				return nil, fmt.Errorf("invalid JSON list: %w", err)
			}
			return v, nil
		}
		if to.Elem().Kind() == reflect.String {
			var items []any
			for _, part := range strings.Split(trimmed, ",") {
				if part = strings.TrimSpace(part); part != "" {
					items = append(items, part)
				}
			}
			return items, nil
		}
		return data, nil

	case kind == reflect.Map || kind == reflect.Struct:
		if empty {
			return map[string]any{}, nil
		}
		var v map[string]any
		if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
			return nil, fmt.Errorf("invalid JSON object: %w", err)
		}
		return v, nil
	}

	return data, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "", "off", "no", "n":
		return false, nil
	case "on", "yes", "y":
		return true, nil
	}
	return cast.ToBoolE(s)
}

func toRawJSON(data any) (datatypes.JSON, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		if !json.Valid([]byte(v)) {
			return nil, errors.New("invalid JSON")
		}
		return datatypes.JSON(v), nil
	case datatypes.JSON:
		return v, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return datatypes.JSON(b), nil
	}
}

// toPayload converts a model to its json field map.
func toPayload(m any) (payload, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	p := payload{}
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	return p, nil
}

// listOf returns key's value as a list of child objects. Lists sent as a
// JSON string in form bodies are parsed.
func (p payload) listOf(key string) ([]any, error) {
	switch v := p[key].(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return []any{}, nil
		}
		var items []any
		if err := json.Unmarshal([]byte(v), &items); err != nil {
			return nil, fmt.Errorf("%s must be a JSON list: %w", key, err)
		}
		return items, nil
	default:
		return nil, fmt.Errorf("%s must be a list", key)
	}
}
