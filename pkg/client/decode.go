package client

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gomcpgo/scene_edit_ai/pkg/types"
)

// alternativeFields are the single-image result fields accepted when a
// response carries no images list
var alternativeFields = []string{"result", "image", "output", "generated_image"}

// StripDataURL returns the raw base64 payload of a data URL, or s unchanged
// when it has no data-URL prefix
func StripDataURL(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			return s[i+1:]
		}
	}
	return s
}

// dataURLMime returns the MIME type declared by a data URL, if any
func dataURLMime(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return ""
	}
	meta := s[len("data:"):]
	if i := strings.IndexAny(meta, ";,"); i >= 0 {
		meta = meta[:i]
	}
	return meta
}

// decodeBase64 accepts padded and unpadded standard encodings
func decodeBase64(s string) ([]byte, error) {
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

// newResult normalizes one base64 or data-URL image into an EditResult
func newResult(raw, mimeHint, family, model string) (*EditResult, error) {
	payload := StripDataURL(raw)
	if payload == "" {
		return nil, types.NewError(types.CodeNoImageReturned, "%s backend returned an empty image", family)
	}
	data, err := decodeBase64(payload)
	if err != nil {
		return nil, types.WrapError(types.CodeMalformedResponse, err, "%s backend returned undecodable base64", family)
	}
	mime := dataURLMime(raw)
	if mime == "" {
		mime = mimeHint
	}
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return &EditResult{
		Base64:   payload,
		Data:     data,
		MimeType: mime,
		Family:   family,
		Model:    model,
	}, nil
}

// decodeImageFields decodes a single-image response body: an images list, or
// one of the alternative result fields
func decodeImageFields(body []byte, family, model string) (*EditResult, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, types.WrapError(types.CodeMalformedResponse, err, "%s backend returned invalid JSON", family)
	}

	if raw, ok := fields["images"]; ok {
		var images []string
		if err := json.Unmarshal(raw, &images); err != nil {
			return nil, types.WrapError(types.CodeMalformedResponse, err, "%s backend returned a malformed images list", family)
		}
		for _, img := range images {
			if strings.TrimSpace(img) != "" {
				return newResult(img, "", family, model)
			}
		}
		return nil, types.NewError(types.CodeNoImageReturned, "%s backend returned no images", family)
	}

	for _, name := range alternativeFields {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, types.WrapError(types.CodeMalformedResponse, err, "%s backend field %q is not a string", family, name)
		}
		return newResult(s, "", family, model)
	}

	return nil, types.NewError(types.CodeMalformedResponse, "%s backend response has no recognized image field", family)
}
