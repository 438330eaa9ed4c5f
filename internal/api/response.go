package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gyaneshwarpardhi/nodegraph/internal/controller"
	"github.com/gyaneshwarpardhi/nodegraph/internal/dag"
	"github.com/gyaneshwarpardhi/nodegraph/internal/engine"
	"github.com/gyaneshwarpardhi/nodegraph/internal/model"
	"github.com/gyaneshwarpardhi/nodegraph/internal/registry"
)

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the standard error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeFailure maps a core error onto its HTTP status.
func writeFailure(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	var (
		missing    *model.MissingMembershipError
		duplicate  *model.DuplicateMembershipError
		mismatch   *model.TypeMismatchError
		degree     *model.DegreeExceededError
		direction  *model.DirectionError
		inUse      *model.SocketInUseError
		attribute  *model.AttributeError
		unresolved *registry.UnresolvedTypeError
		cyclic     *dag.CyclicGraphError
	)
	switch {
	case errors.Is(err, engine.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, engine.ErrTimeout):
		return http.StatusServiceUnavailable
	case errors.As(err, &missing):
		return http.StatusNotFound
	case errors.As(err, &duplicate), errors.As(err, &mismatch), errors.As(err, &degree),
		errors.As(err, &direction), errors.As(err, &inUse), errors.As(err, &cyclic),
		errors.Is(err, dag.ErrPassInProgress):
		return http.StatusConflict
	case errors.As(err, &attribute), errors.As(err, &unresolved), errors.Is(err, controller.ErrEdgeOpen):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
