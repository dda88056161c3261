package response

import (
	"encoding/json"
	"net/http"
)

// V1Response is the envelope for all API responses
type V1Response struct {
	Messages []string    `json:"messages"`
	Result   interface{} `json:"result"`
}

// WriteResponse will serialize the result into the response envelope with status 200
func WriteResponse(w http.ResponseWriter, r *http.Request, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(V1Response{
		Messages: []string{},
		Result:   result,
	})
}

// WriteError will serialize the Error into the response envelope with the Error's status code
func WriteError(w http.ResponseWriter, r *http.Request, e *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	messages := e.Messages
	if len(messages) == 0 && len(e.Message) > 0 {
		messages = []string{e.Message}
	}
	json.NewEncoder(w).Encode(V1Response{
		Messages: messages,
		Result:   e.Result,
	})
}
