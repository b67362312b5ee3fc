package server

import (
	"encoding/json"
	"net/http"

	"github.com/remotezip/remotezip/core"
)

type envelope struct {
	Data  any        `json:"data,omitempty"`
	Error *core.Error `json:"error,omitempty"`
}

func (e envelope) send(w http.ResponseWriter, statusCode int) {
	if statusCode == http.StatusNoContent {
		w.WriteHeader(statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(e)
}

// SendError renders err as the module's standard JSON error envelope,
// mirroring the teacher's shared.SendError: any error is coerced into a
// *core.Error, stamped with the request's method/path/id, and sent with its
// own status code.
func SendError(w http.ResponseWriter, r *http.Request, err error) {
	var e *core.Error
	if ce, ok := err.(*core.Error); ok {
		e = ce
	} else {
		e = core.NewAPIError(err.Error())
		e.Cause = err
	}
	e.Pack(r)

	rc := GetReqCtx(r)
	rc.Error = err
	e.RequestId = rc.RequestId

	envelope{Error: e}.send(w, e.GetStatusCode())
}

// SendResponse renders data as the standard JSON success envelope, or
// delegates to SendError if err is non-nil.
func SendResponse(w http.ResponseWriter, r *http.Request, statusCode int, data any, err error) {
	if err != nil {
		SendError(w, r, err)
		return
	}
	envelope{Data: data}.send(w, statusCode)
}
