package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/tollgate-dev/tollgate/internal/auth/security"
	"github.com/tollgate-dev/tollgate/internal/auth/service"
	"github.com/tollgate-dev/tollgate/pkg/authsdk"
	"github.com/tollgate-dev/tollgate/pkg/httpx"
	"github.com/tollgate-dev/tollgate/pkg/jwtx"
	"github.com/tollgate-dev/tollgate/pkg/slogx"
)

// errorMapping turns a service error into a response.
type errorMapping struct {
	target error
	write  func(w http.ResponseWriter, r *http.Request, err error)
}

// errorTable is checked in order with errors.Is; the first match wins.
var errorTable = []errorMapping{
	{target: service.ErrAuthorizationFailure, write: func(w http.ResponseWriter, r *http.Request, _ error) {
		security.WriteForbidden(w, r)
	}},
	{target: jwtx.ErrExpired, write: func(w http.ResponseWriter, r *http.Request, _ error) {
		security.WriteUnauthorized(w, r)
	}},
	{target: service.ErrInvalidToken, write: func(w http.ResponseWriter, r *http.Request, _ error) {
		security.WriteUnauthorized(w, r)
	}},
	{target: service.ErrObjectNotFound, write: func(w http.ResponseWriter, r *http.Request, err error) {
		msg := "Object Not Found!"
		var nf *service.NotFoundError
		if errors.As(err, &nf) {
			msg = nf.Error()
		}
		authsdk.NewStandardError(http.StatusNotFound, "Object Not Found", msg, r.URL.Path).WriteError(w)
	}},
	{target: service.ErrDataIntegrity, write: func(w http.ResponseWriter, r *http.Request, err error) {
		authsdk.NewStandardError(http.StatusBadRequest, "Data integrity violation", dataIntegrityMessage(err), r.URL.Path).WriteError(w)
	}},
	{target: httpx.ErrEmptyBody, write: writeBadBody},
}

// writeError maps err through errorTable, falling back to a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			m.write(w, r, err)
			return
		}
	}

	slogx.FromContext(r.Context()).Error("unhandled_error", slog.String("path", r.URL.Path), slog.Any("error", err))
	authsdk.NewStandardError(http.StatusInternalServerError, "Internal Server Error", "An internal error occurred", r.URL.Path).WriteError(w)
}

func writeBadBody(w http.ResponseWriter, r *http.Request, _ error) {
	authsdk.NewStandardError(http.StatusBadRequest, "Bad Request", "Request body must be valid JSON", r.URL.Path).WriteError(w)
}

func writeValidation(w http.ResponseWriter, r *http.Request, fields []authsdk.FieldMessage) {
	authsdk.NewValidationError(r.URL.Path, fields).WriteError(w)
}

// dataIntegrityMessage strips the sentinel prefix off a wrapped
// ErrDataIntegrity.
func dataIntegrityMessage(err error) string {
	msg := err.Error()
	prefix := service.ErrDataIntegrity.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}
