package server

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/cv-generator/internal/logging"
	"github.com/jonathan/cv-generator/internal/pipeline"
	"github.com/jonathan/cv-generator/internal/types"
)

// Multipart form fields of POST /generate
const (
	fieldFile         = "file"
	fieldReference    = "reference"
	fieldChampion     = "championProfile" // alias of reference sent by the web client
	fieldLanguage     = "language"
	fieldAIEnhance    = "aiEnhance"
	fieldBlindCV      = "blindCV"
	fieldReferenceURL = "reference_url"
)

// handleGenerate turns an uploaded CV into a rendered DOCX.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.New().String()
	w.Header().Set(logging.RequestIDHeader, requestID)
	logger := s.logger.With(logging.RequestID(requestID))

	fail := func(err error) {
		w.Header().Set(ProcessingTimeHeader, processingTime(start))
		msg, details := describe(err)
		s.jsonResponse(w, HTTPStatus(err), errorBody{Error: msg, Details: details, RequestID: requestID})
	}

	// Files are held in memory up to the body limit, so nothing spills to disk
	// outside the lifecycle manager's scratch directory.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(&ErrTooLarge{Limit: s.cfg.MaxUploadBytes})
			return
		}
		fail(&ErrValidation{Field: "body", Message: "expected a multipart form"})
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logger.Warn("failed to remove multipart form files", zap.Error(err))
		}
	}()

	opts, err := parseOptions(r)
	if err != nil {
		fail(err)
		return
	}

	upload, uploadHeader, err := r.FormFile(fieldFile)
	if err != nil {
		fail(&ErrValidation{Field: fieldFile, Message: "a CV file is required"})
		return
	}
	defer upload.Close()

	in := pipeline.Input{
		RequestID: requestID,
		Upload:    pipeline.Document{Name: uploadHeader.Filename, Body: upload},
		Options:   opts,
	}

	field := referenceField(r.MultipartForm, logger)
	reference, referenceHeader, err := r.FormFile(field)
	switch {
	case err == nil:
		defer reference.Close()
		in.Reference = &pipeline.Document{Name: referenceHeader.Filename, Body: reference}
	case !errors.Is(err, http.ErrMissingFile):
		fail(&ErrValidation{Field: field, Message: "could not read the reference file"})
		return
	}

	if err := s.admission.Acquire(r.Context(), 1); err != nil {
		logger.Warn("request abandoned while waiting for a processing slot", zap.Error(err))
		fail(&pipeline.Failure{
			Kind:      pipeline.KindInternal,
			RequestID: requestID,
			Message:   "Request cancelled",
			Detail:    "the request ended before processing started",
			Cause:     err,
		})
		return
	}
	defer s.admission.Release(1)

	result, err := s.processor.Process(r.Context(), in)
	if err != nil {
		fail(err)
		return
	}

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Document)))
	w.Header().Set(ProcessingTimeHeader, processingTime(start))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Document); err != nil {
		logger.Warn("failed to write document", zap.Error(err))
	}
}

// referenceField picks the form field holding the reference profile.
// reference wins over championProfile when both are sent.
func referenceField(form *multipart.Form, logger *zap.Logger) string {
	hasReference := len(form.File[fieldReference]) > 0
	hasChampion := len(form.File[fieldChampion]) > 0
	switch {
	case hasReference && hasChampion:
		logger.Info("both reference fields supplied, using "+fieldReference,
			zap.String("ignored_field", fieldChampion))
		return fieldReference
	case hasChampion:
		return fieldChampion
	default:
		return fieldReference
	}
}

func parseOptions(r *http.Request) (types.Options, error) {
	lang, ok := types.ParseLanguage(r.FormValue(fieldLanguage))
	if !ok {
		return types.Options{}, &ErrValidation{Field: fieldLanguage, Message: "must be primary, secondary, pl or en"}
	}
	enhance, err := parseFlag(r, fieldAIEnhance)
	if err != nil {
		return types.Options{}, err
	}
	blind, err := parseFlag(r, fieldBlindCV)
	if err != nil {
		return types.Options{}, err
	}
	return types.Options{
		Language:     lang,
		Enhance:      enhance,
		Anonymize:    blind,
		ReferenceURL: strings.TrimSpace(r.FormValue(fieldReferenceURL)),
	}, nil
}

// parseFlag reads an optional boolean form field; empty means false.
func parseFlag(r *http.Request, field string) (bool, error) {
	v := strings.TrimSpace(r.FormValue(field))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &ErrValidation{Field: field, Message: "must be true or false"}
	}
	return b, nil
}

func processingTime(start time.Time) string {
	return strconv.FormatInt(time.Since(start).Milliseconds(), 10)
}
