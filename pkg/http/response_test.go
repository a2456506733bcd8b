package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type windowRequest struct {
	TF    string `query:"tf" default:"3m" validate:"oneof=1m 3m 1h"`
	Limit int    `query:"limit" default:"100" validate:"gte=1,lte=500"`
	From  string `query:"from" validate:"required"`
}

func newContext(target string) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	return echo.New().NewContext(httptest.NewRequest(http.MethodGet, target, nil), rec), rec
}

func TestReadAndValidateRequestFillsDefaults(t *testing.T) {
	c, _ := newContext("/bars?from=2024-03-04")
	req := &windowRequest{}
	if errs := ReadAndValidateRequest(c, req); errs != nil {
		t.Fatalf("unexpected errors %+v", errs)
	}
	if req.TF != "3m" || req.Limit != 100 {
		t.Fatalf("defaults not applied: %+v", req)
	}
}

func TestReadAndValidateRequestReportsFields(t *testing.T) {
	c, _ := newContext("/bars?tf=2h&limit=900")
	errs := ReadAndValidateRequest(c, &windowRequest{})
	codes := map[string]string{}
	for _, e := range errs {
		codes[e.Field] = e.Code
	}
	if codes["TF"] != "ERR_ONEOF" || codes["Limit"] != "ERR_LTE" || codes["From"] != "ERR_REQUIRED" {
		t.Fatalf("unexpected validation errors %+v", errs)
	}
}

func TestAppErrorResponseStatus(t *testing.T) {
	c, rec := newContext("/")
	_ = AppErrorResponse(c, NotFoundError("no proposal yet"))
	var env APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusNotFound || env.Status != http.StatusNotFound {
		t.Fatalf("expected 404 envelope, got %d %+v", rec.Code, env)
	}

	c, rec = newContext("/")
	_ = AppErrorResponse(c, errors.New("boom"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("plain errors should be 500, got %d", rec.Code)
	}

	cause := errors.New("clickhouse down")
	if err := InternalError("bars query failed").WithError(cause); !errors.Is(err, cause) {
		t.Fatal("cause should unwrap")
	}
}
