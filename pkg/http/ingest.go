package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// decodeReport turns whatever a page posted into a ReportRequest. Bodies
// are never rejected: non-string fields are rendered as text and a body
// that is not JSON becomes the message itself.
func decodeReport(body []byte) ReportRequest {
	if len(bytes.TrimSpace(body)) == 0 {
		return ReportRequest{}
	}

	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil || dec.More() {
		return ReportRequest{Message: strings.TrimSpace(string(body))}
	}

	fields, ok := v.(map[string]interface{})
	if !ok {
		return ReportRequest{Message: textOf(v)}
	}

	req := ReportRequest{
		Message: textOf(fields["message"]),
		Stack:   textOf(fields["stack"]),
		Level:   textOf(fields["level"]),
		Context: textOf(fields["context"]),
	}

	// A serialized Error arrives as {"message": {"message": ..., "stack": ...}}
	if inner, ok := fields["message"].(map[string]interface{}); ok {
		if msg, ok := inner["message"].(string); ok {
			req.Message = msg
			if stack, ok := inner["stack"].(string); ok && req.Stack == "" {
				req.Stack = stack
			}
		}
	}
	return req
}

func textOf(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return fmt.Sprint(t)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}
