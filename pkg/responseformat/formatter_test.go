package responseformat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

type payload struct {
	Pixel string  `json:"pixel" msgpack:"pixel"`
	Onset float64 `json:"onset" msgpack:"onset"`
}

func TestWriteResponse(t *testing.T) {
	tests := []struct {
		name        string
		target      string
		accept      string
		contentType string
	}{
		{"default json", "/pixels/0_0", "", ContentTypeJSON},
		{"format query", "/pixels/0_0?format=msgpack", "", ContentTypeMsgPack},
		{"accept header", "/pixels/0_0", ContentTypeMsgPack, ContentTypeMsgPack},
		{"query wins over header", "/pixels/0_0?format=json", ContentTypeMsgPack, ContentTypeJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			rec := httptest.NewRecorder()

			if err := NewFormatter().WriteResponse(rec, req, payload{Pixel: "0_0", Onset: 121}); err != nil {
				t.Fatalf("WriteResponse: %v", err)
			}
			if got := rec.Header().Get("Content-Type"); got != tt.contentType {
				t.Errorf("Content-Type = %q, want %q", got, tt.contentType)
			}
			if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
				t.Error("CORS header missing")
			}

			var got payload
			var err error
			if tt.contentType == ContentTypeMsgPack {
				err = msgpack.Unmarshal(rec.Body.Bytes(), &got)
			} else {
				err = json.Unmarshal(rec.Body.Bytes(), &got)
			}
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Pixel != "0_0" || got.Onset != 121 {
				t.Errorf("decoded %+v", got)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/pixels/x", nil)
	rec := httptest.NewRecorder()
	if err := NewFormatter().WriteError(rec, req, http.StatusNotFound, "pixel x not found"); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
	var body ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Error != "pixel x not found" {
		t.Errorf("body = %q (%v)", rec.Body.String(), err)
	}
}
