package controller

import (
	"net/http"
	"strconv"
)

// Result is what a handler returns: a fully formed *Response, a Page of
// markup, a *TemplatePage, or nil.
type Result interface {
	isResult()
}

// Page is handler markup that still has to be localized and wrapped.
type Page string

func (Page) isResult() {}

// TemplatePage is a template resource together with the data it renders.
// Compose localizes Source before the data is rendered into it, so record
// values are never read as placeholders.
type TemplatePage struct {
	Path   string
	Source string
	Data   any
}

func (*TemplatePage) isResult() {}

// Response is a complete transport response. The composer passes it through
// unchanged.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

func (*Response) isResult() {}

// ContentTypeHTML is the content type of composed pages.
const ContentTypeHTML = "text/html;charset=UTF-8"

// NewResponse returns a response with an explicit content type and length.
func NewResponse(status int, contentType string, body []byte) *Response {
	h := http.Header{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	h.Set("Content-Length", strconv.Itoa(len(body)))
	return &Response{Status: status, Header: h, Body: body}
}

// HTMLResponse wraps markup as a 200 page.
func HTMLResponse(markup string) *Response {
	return NewResponse(http.StatusOK, ContentTypeHTML, []byte(markup))
}

// ErrorResponse is the generic transport-level failure returned when a
// handler produced nothing.
func ErrorResponse() *Response {
	return NewResponse(http.StatusBadGateway, "", nil)
}

// Redirect returns a 303 to location.
func Redirect(location string) *Response {
	r := NewResponse(http.StatusSeeOther, "", nil)
	r.Header.Set("Location", location)
	return r
}

// Write sends the response. A missing Content-Length is filled in.
func (r *Response) Write(w http.ResponseWriter) error {
	h := w.Header()
	for k, v := range r.Header {
		h[k] = append([]string(nil), v...)
	}
	if h.Get("Content-Length") == "" {
		h.Set("Content-Length", strconv.Itoa(len(r.Body)))
	}
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, err := w.Write(r.Body)
	return err
}
