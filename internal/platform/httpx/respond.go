// Package httpx writes the admin API response envelope. Every response,
// success or failure, is a JSON object with a success flag and, on failure,
// a stable machine readable code.
package httpx

import (
	"encoding/json"
	"net/http"
)

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Success writes the success envelope. A nil data omits the data field.
func Success(w http.ResponseWriter, status int, message string, data any) {
	payload := map[string]any{
		"success": true,
		"message": message,
	}
	if data != nil {
		payload["data"] = data
	}
	JSON(w, status, payload)
}

// Error writes the failure envelope. Extra fields (for example the required
// permission list on an authorization denial) are merged in at the top level.
func Error(w http.ResponseWriter, status int, code, message string, extra map[string]any) {
	payload := map[string]any{
		"success": false,
		"error":   message,
		"code":    code,
	}
	for k, v := range extra {
		payload[k] = v
	}
	JSON(w, status, payload)
}

// DecodeJSON decodes a JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
