package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/ResumePipe/internal/models"
)

// fallbackErrorBody is sent when a response value cannot be encoded.
var fallbackErrorBody []byte

func init() {
	var err error
	fallbackErrorBody, err = json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("api: cannot encode fallback error body: %v", err))
	}
}

// writeJSONResponse encodes body before touching headers, so an encoding
// failure still yields a well-formed 500.
func writeJSONResponse(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		slog.Error("Server.writeJSONResponse: encode failed", "error", err, "status", status)
		data = fallbackErrorBody
		status = http.StatusInternalServerError
	}

	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("Server.writeJSONResponse: write failed", "error", err)
	}
}

// writeError replies with the error envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSONResponse(w, status, models.Error(msg))
}
