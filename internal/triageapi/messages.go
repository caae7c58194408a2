package triageapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/linnemanlabs/docbox/internal/mailbox"
	"github.com/linnemanlabs/docbox/internal/triage"
)

func (a *API) handleIngestMessage(w http.ResponseWriter, r *http.Request) {
	var msg mailbox.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if strings.TrimSpace(msg.Sender) == "" || strings.TrimSpace(msg.Subject) == "" {
		writeError(w, http.StatusBadRequest, "sender and subject are required")
		return
	}

	v, err := a.svc.Ingest(r.Context(), &msg)
	if err != nil {
		if errors.Is(err, triage.ErrDuplicateSource) {
			writeError(w, http.StatusConflict, "message already ingested")
			return
		}
		a.logger.Error(r.Context(), err, "ingestion failed", "sender", msg.Sender)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, v)
}
