package rest

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/errors"
)

// ErrorBody is the error payload of every failed request
type ErrorBody struct {
	Code      string              `json:"code"`
	Message   string              `json:"message"`
	Fields    map[string][]string `json:"fields,omitempty"`
	RequestID string              `json:"requestId,omitempty"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// classifyError maps err to a status code and body. Internal causes are
// never exposed.
func classifyError(err error) (int, ErrorBody) {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		status := appErr.StatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return status, ErrorBody{Code: appErr.Code, Message: appErr.Message}
	}

	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		fields := make(map[string][]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = append(fields[fe.Field()], describeFieldError(fe))
		}
		return http.StatusBadRequest, ErrorBody{Code: "VALIDATION_ERROR", Message: "request validation failed", Fields: fields}
	}

	var syntaxErr *json.SyntaxError
	if stderrors.As(err, &syntaxErr) {
		return http.StatusBadRequest, ErrorBody{Code: "INVALID_JSON",
			Message: fmt.Sprintf("invalid JSON at position %d", syntaxErr.Offset)}
	}
	var typeErr *json.UnmarshalTypeError
	if stderrors.As(err, &typeErr) {
		return http.StatusBadRequest, ErrorBody{Code: "TYPE_MISMATCH",
			Message: fmt.Sprintf("invalid type for field %q", typeErr.Field)}
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, ErrorBody{Code: "REQUEST_TIMEOUT", Message: "request timed out"}
	}

	return http.StatusInternalServerError, ErrorBody{Code: "INTERNAL_ERROR", Message: "an internal error occurred"}
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "latitude", "longitude":
		return "must be a valid " + fe.Tag()
	case "iso4217":
		return "must be an ISO 4217 currency code"
	case "ip":
		return "must be an IP address"
	default:
		return "failed " + strings.ReplaceAll(fe.Tag(), "_", " ") + " validation"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classifyError(err)
	body.RequestID = requestIDFrom(r.Context())
	writeJSON(w, status, errorEnvelope{Error: body})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
