package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/MrEthical07/resumeauth"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError answers with the status and code of err. Causes are never exposed.
func WriteError(w http.ResponseWriter, err error) {
	e := resumeauth.AsError(err)
	if e == nil {
		e = resumeauth.ErrInternal
	}
	WriteJSON(w, e.HTTPStatus(), ErrorBody{Code: e.Code, Message: e.Message})
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
