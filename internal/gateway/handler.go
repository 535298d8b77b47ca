package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"notionblog/internal/imageref"
	"notionblog/internal/metrics"
	"notionblog/internal/notion"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeNotionAPI     = "NOTION_API_ERROR"
	CodeInternalError = "INTERNAL_ERROR"

	successCacheControl = "public, max-age=60, s-maxage=60, stale-while-revalidate=60"
	errorCacheControl   = "no-store, no-cache, must-revalidate"

	notFoundMessage = "Image not found in the specified location"
)

type Resolver interface {
	Resolve(ctx context.Context, ref imageref.Reference) (Result, error)
}

type refreshQuery struct {
	PageID  string `query:"pageId" validate:"required,notionid"`
	BlockID string `query:"blockId" validate:"omitempty,notionid"`
}

// NewValidator returns a validator that knows the notionid rule and reports
// fields by their query parameter names.
func NewValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("notionid", func(fl validator.FieldLevel) bool {
		return imageref.IsIdentifier(fl.Field().String())
	})
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("query"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})

	return validate
}

// Handler serves GET /api/refreshImageUrl.
type Handler struct {
	resolver Resolver
	validate *validator.Validate
	logger   *zap.Logger
}

func NewHandler(resolver Resolver, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Handler{
		resolver: resolver,
		validate: NewValidator(),
		logger:   logger,
	}
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := refreshQuery{
		PageID:  strings.TrimSpace(r.URL.Query().Get("pageId")),
		BlockID: strings.TrimSpace(r.URL.Query().Get("blockId")),
	}

	ref, err := h.parse(query)
	if err != nil {
		var validationErr *ValidationError
		errors.As(err, &validationErr)
		metrics.RecordRefresh(metrics.OutcomeInvalid)
		h.logger.Info("rejected image refresh request",
			zap.String("field", validationErr.Field),
			zap.Int("status", http.StatusBadRequest),
			zap.String("code", CodeValidation),
		)
		writeJSON(w, http.StatusBadRequest, errorCacheControl, errorBody{
			Error: validationErr.Message,
			Code:  CodeValidation,
			Field: validationErr.Field,
		})
		return
	}

	result, err := h.resolver.Resolve(r.Context(), ref)
	if err != nil {
		status, body := h.classify(err)
		h.logger.Warn("image refresh failed",
			zap.String("ref", ref.String()),
			zap.Int("status", status),
			zap.String("code", body.Code),
			zap.Error(err),
		)
		writeJSON(w, status, errorCacheControl, body)
		return
	}

	metrics.RecordRefresh(metrics.OutcomeOK)
	writeJSON(w, http.StatusOK, successCacheControl, result)
}

func (h *Handler) parse(query refreshQuery) (imageref.Reference, error) {
	if err := h.validate.Struct(query); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return imageref.Reference{}, validationFromField(fieldErrs[0])
		}
		return imageref.Reference{}, &ValidationError{Field: "pageId", Message: err.Error()}
	}

	ref, err := imageref.NewReference(query.PageID, query.BlockID)
	if err != nil {
		return imageref.Reference{}, &ValidationError{Field: "pageId", Message: "Invalid Page ID format"}
	}

	return ref, nil
}

func validationFromField(fe validator.FieldError) *ValidationError {
	label := "Page ID"
	if fe.Field() == "blockId" {
		label = "Block ID"
	}

	message := "Invalid " + label + " format"
	if fe.Tag() == "required" {
		message = label + " is required"
	}

	return &ValidationError{Field: fe.Field(), Message: message}
}

func (h *Handler) classify(err error) (int, errorBody) {
	if errors.Is(err, ErrImageNotFound) {
		metrics.RecordRefresh(metrics.OutcomeNotFound)
		return http.StatusNotFound, errorBody{Error: notFoundMessage}
	}

	metrics.RecordRefresh(metrics.OutcomeUpstream)

	var apiErr *notion.APIError
	if !errors.As(err, &apiErr) {
		return http.StatusInternalServerError, errorBody{Error: "Internal server error", Code: CodeInternalError}
	}

	status := http.StatusInternalServerError
	switch apiErr.Code {
	case notion.CodeUnauthorized:
		status = http.StatusUnauthorized
	case notion.CodeRateLimited:
		status = http.StatusTooManyRequests
	}

	return status, errorBody{Error: "Failed to fetch image from Notion", Code: CodeNotionAPI}
}

func writeJSON(w http.ResponseWriter, status int, cacheControl string, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", cacheControl)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
