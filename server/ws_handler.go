package server

import (
	"errors"
	"net/http"
	"time"

	"musaix/core/notify"
	"musaix/logger"
	"musaix/repository"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const wsWriteTimeout = 10 * time.Second

// AnalysisWSHandler streams row updates for one analysis id over a
// websocket. The current row state is sent immediately; if it is already
// terminal the connection closes right after. Otherwise updates flow until
// a terminal status is observed or the client disconnects.
func (h *APIHandler) AnalysisWSHandler(w http.ResponseWriter, r *http.Request) {
	analysisID := mux.Vars(r)["id"]

	current, err := h.analyses.GetByID(r.Context(), analysisID)
	if err != nil {
		if errors.Is(err, repository.ErrAnalysisNotFound) {
			writeError(w, http.StatusNotFound, "Analysis not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Could not fetch analysis data")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	initial := notify.Update{
		AnalysisID: analysisID,
		Status:     current.ProcessingStatus,
		Analysis:   current,
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(initial); err != nil {
		return
	}
	if current.ProcessingStatus.IsTerminal() {
		return
	}

	sub := h.hub.Subscribe(analysisID)
	defer sub.Close()

	// Reader goroutine: consume control frames and detect disconnects.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case update, ok := <-sub.C:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(update); err != nil {
				return
			}
			if update.Status.IsTerminal() {
				return
			}
		}
	}
}
