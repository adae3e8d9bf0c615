package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/startnerve/coursefactory/internal/assemble"
	"github.com/startnerve/coursefactory/internal/credits"
	"github.com/startnerve/coursefactory/internal/lessons"
	"github.com/startnerve/coursefactory/internal/outline"
	"github.com/startnerve/coursefactory/internal/payments"
	"github.com/startnerve/coursefactory/internal/viral"
)

// maxUploadSize bounds cover image uploads.
const maxUploadSize = 10 << 20

// OutlineRequest is the payload for POST /api/generate-outline.
type OutlineRequest struct {
	Topic    string `json:"topic" validate:"required"`
	Audience string `json:"audience" validate:"required"`
	Framing  string `json:"framing"`
	UID      string `json:"uid" validate:"required"`
}

// ContentRequest is the payload for POST /api/generate-text-content.
type ContentRequest struct {
	Outline *outline.Outline `json:"outline" validate:"required"`
	UID     string           `json:"uid" validate:"required"`
}

// FullEbookRequest is the payload for POST /api/generate-full-ebook.
type FullEbookRequest struct {
	Outline             *outline.Outline  `json:"outline" validate:"required"`
	EditedContent       []lessons.Content `json:"editedContent" validate:"required"`
	Font                string            `json:"font"`
	Color               string            `json:"color"`
	CoverImagePath      string            `json:"coverImagePath"`
	IncludeSummary      bool              `json:"includeSummary"`
	IncludeActionGuides bool              `json:"includeActionGuides"`
	UID                 string            `json:"uid" validate:"required"`
}

// ViralContentRequest is the payload for POST /api/generate-viral-content.
type ViralContentRequest struct {
	Topic    string         `json:"topic" validate:"required"`
	BrandDNA viral.BrandDNA `json:"brand_dna"`
	UID      string         `json:"uid" validate:"required"`
}

// decodeAndValidate parses the JSON body into dst and runs struct
// validation. Callers pass a pointer.
func (s *Server) decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &ErrValidation{Field: "body", Message: "invalid JSON payload"}
	}
	if err := s.validate.Struct(dst); err != nil {
		return err
	}
	return nil
}

// handleGenerateOutline spends one "ebook" credit, generates and parses a
// course outline, and refunds the credit if the model output could not be
// parsed into any module.
func (s *Server) handleGenerateOutline(w http.ResponseWriter, r *http.Request) {
	var req OutlineRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	if _, err := s.ledger.Consume(r.Context(), req.UID, credits.EngineEbook); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	o, err := s.pipeline.GenerateOutline(r.Context(), req.Topic, req.Audience, req.Framing)
	if err != nil {
		// The user got nothing usable, so the attempt is not charged.
		if _, refundErr := s.ledger.Grant(r.Context(), req.UID, credits.EngineEbook, 1); refundErr != nil {
			log.Printf("Failed to refund ebook credit for %s: %v", req.UID, refundErr)
		}
		if errors.Is(err, outline.ErrNoModules) {
			s.errorResponse(w, HTTPStatus(err), "the generated outline could not be parsed; please try again")
			return
		}
		log.Printf("Outline generation failed: %v", err)
		s.errorResponse(w, http.StatusInternalServerError, "outline generation failed")
		return
	}

	s.jsonResponse(w, http.StatusOK, o)
}

// handleGenerateContent runs the lesson fan-out over an approved outline
// and returns all lesson content in outline order.
func (s *Server) handleGenerateContent(w http.ResponseWriter, r *http.Request) {
	var req ContentRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	if len(req.Outline.Modules) == 0 {
		s.errorResponse(w, http.StatusBadRequest, "outline has no modules")
		return
	}

	content := s.pipeline.GenerateContent(r.Context(), req.Outline)
	s.jsonResponse(w, http.StatusOK, map[string]any{"ebook_content": content})
}

// handleGenerateFullEbook assembles the edited content into HTML, renders
// the PDF and responds with its download URL.
func (s *Server) handleGenerateFullEbook(w http.ResponseWriter, r *http.Request) {
	var req FullEbookRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	filename, err := s.pipeline.BuildEbook(r.Context(), req.Outline, req.EditedContent, assemble.Options{
		FontName:            req.Font,
		ColorHex:            req.Color,
		CoverImagePath:      req.CoverImagePath,
		IncludeSummary:      req.IncludeSummary,
		IncludeActionGuides: req.IncludeActionGuides,
	})
	if err != nil {
		log.Printf("Ebook build failed: %v", err)
		s.errorResponse(w, http.StatusInternalServerError, "ebook generation failed")
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]string{
		"download_url": "/api/download/" + filename,
	})
}

// handleDownload streams a previously generated PDF.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")

	f, err := s.files.OpenEbook(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.errorResponse(w, http.StatusNotFound, "file not found")
			return
		}
		s.errorResponse(w, http.StatusBadRequest, "invalid filename")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := io.Copy(w, f); err != nil {
		log.Printf("Error streaming %s: %v", filename, err)
	}
}

// handleUploadCover stores an uploaded cover image and returns the path
// the full-ebook request can reference it by.
func (s *Server) handleUploadCover(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("coverImage")
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "missing coverImage file")
		return
	}
	defer file.Close()

	filename, err := s.files.SaveCover(header.Filename, file)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]string{
		"filePath": "/covers/" + filename,
	})
}

// handleGetCover serves an uploaded cover image.
func (s *Server) handleGetCover(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")

	f, err := s.files.OpenCover(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.errorResponse(w, http.StatusNotFound, "file not found")
			return
		}
		s.errorResponse(w, http.StatusBadRequest, "invalid filename")
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to read file")
		return
	}
	http.ServeContent(w, r, filename, stat.ModTime(), f)
}

// handleGenerateViralContent spends one "script" credit and generates a
// social media campaign for the topic.
func (s *Server) handleGenerateViralContent(w http.ResponseWriter, r *http.Request) {
	var req ViralContentRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	if _, err := s.ledger.Consume(r.Context(), req.UID, credits.EngineScript); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	campaign, err := s.campaigns.Generate(r.Context(), req.Topic, req.BrandDNA)
	if err != nil {
		if _, refundErr := s.ledger.Grant(r.Context(), req.UID, credits.EngineScript, 1); refundErr != nil {
			log.Printf("Failed to refund script credit for %s: %v", req.UID, refundErr)
		}
		log.Printf("Viral content generation failed: %v", err)
		s.errorResponse(w, http.StatusInternalServerError, "viral content generation failed")
		return
	}

	s.jsonResponse(w, http.StatusOK, campaign)
}

// handlePricing returns the plan for the request's country.
func (s *Server) handlePricing(w http.ResponseWriter, r *http.Request) {
	country := r.URL.Query().Get("country")
	if country == "" {
		country = r.Header.Get("CF-IPCountry")
	}
	s.jsonResponse(w, http.StatusOK, s.pricing.Lookup(country))
}

// handlePaymentWebhook verifies the provider signature and grants the
// purchased plan's credits.
func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if !s.webhook.Verify(body, r.Header.Get("X-Webhook-Signature")) {
		s.errorResponse(w, http.StatusBadRequest, "invalid webhook signature")
		return
	}

	event, err := payments.ParseEvent(body)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	if event.Type != payments.EventTypePaymentCaptured {
		// Other event types are acknowledged so the provider stops retrying.
		s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	grant, ok := s.plans[event.Plan]
	if !ok {
		s.errorResponse(w, http.StatusBadRequest, fmt.Sprintf("unknown plan: %s", event.Plan))
		return
	}

	for engine, amount := range grant {
		if _, err := s.ledger.Grant(r.Context(), event.UserID, engine, amount); err != nil {
			log.Printf("Failed to grant %d %s credits to %s: %v", amount, engine, event.UserID, err)
			s.errorResponse(w, http.StatusInternalServerError, "failed to apply credits")
			return
		}
	}

	log.Printf("Granted plan %s to user %s (event %s)", event.Plan, event.UserID, event.EventID)
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "credited"})
}
