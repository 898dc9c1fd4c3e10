package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/courtcopilot/courtcopilot/internal/ailink/encode"
	"github.com/courtcopilot/courtcopilot/internal/core"
	apperrors "github.com/courtcopilot/courtcopilot/internal/errors"
)

const defaultDocumentMIME = "application/pdf"

// DocumentPayload carries an uploaded file. Data is base64, optionally as a
// data URL.
type DocumentPayload struct {
	Name     string `json:"name"`
	MIMEType string `json:"mimeType,omitempty"`
	Data     string `json:"data"`
}

type documentRequest struct {
	Document DocumentPayload `json:"document"`
}

type crossReferenceRequest struct {
	DocumentA DocumentPayload `json:"documentA"`
	DocumentB DocumentPayload `json:"documentB"`
}

type askRequest struct {
	Context  json.RawMessage `json:"context"`
	Question string          `json:"question"`
}

func (p DocumentPayload) decode(field string) (core.Document, error) {
	doc := core.Document{Name: strings.TrimSpace(p.Name), MIMEType: p.MIMEType}
	if p.Data == "" {
		return doc, nil
	}
	data, mime, err := encode.DecodeAttachment(p.Data)
	if err != nil {
		return doc, &core.ValidationError{Field: field, Message: "data is not valid base64"}
	}
	doc.Data = data
	if doc.MIMEType == "" {
		doc.MIMEType = mime
	}
	if doc.MIMEType == "" {
		doc.MIMEType = defaultDocumentMIME
	}
	return doc, nil
}

// AnalyzeDocument audits one uploaded document.
func (a *API) AnalyzeDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := a.readDocument(w, r)
	if !ok {
		return
	}
	result, err := a.svc.AnalyzeDocument(r.Context(), doc)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// NarrativeMap maps the entities of one uploaded document.
func (a *API) NarrativeMap(w http.ResponseWriter, r *http.Request) {
	doc, ok := a.readDocument(w, r)
	if !ok {
		return
	}
	result, err := a.svc.GenerateNarrativeMap(r.Context(), doc)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CrossReference compares documentA against documentB.
func (a *API) CrossReference(w http.ResponseWriter, r *http.Request) {
	var body crossReferenceRequest
	if err := decodeJSON(w, r, &body); err != nil {
		respondWithError(w, r, err)
		return
	}
	docA, err := body.DocumentA.decode("documentA")
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	docB, err := body.DocumentB.decode("documentB")
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	result, err := a.svc.CrossReference(r.Context(), docA, docB)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// AskFollowUp answers a question about a prior analysis.
func (a *API) AskFollowUp(w http.ResponseWriter, r *http.Request) {
	var body askRequest
	if err := decodeJSON(w, r, &body); err != nil {
		respondWithError(w, r, err)
		return
	}
	var analysis any
	if len(body.Context) > 0 {
		analysis = body.Context
	}
	answer, err := a.svc.AskFollowUp(r.Context(), analysis, body.Question)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

// JudgeDetails returns the dossier for the judge named in the path.
func (a *API) JudgeDetails(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "invalid judge name"))
		return
	}
	detail, err := a.svc.JudgeDetails(r.Context(), name)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (a *API) readDocument(w http.ResponseWriter, r *http.Request) (core.Document, bool) {
	var body documentRequest
	if err := decodeJSON(w, r, &body); err != nil {
		respondWithError(w, r, err)
		return core.Document{}, false
	}
	doc, err := body.Document.decode("document")
	if err != nil {
		respondWithError(w, r, err)
		return core.Document{}, false
	}
	return doc, true
}
