// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	_ "github.com/tomtom215/tabline/docs"
	"github.com/tomtom215/tabline/internal/models"
)

func TestSwaggerDocument(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, models.Actor{}, http.MethodGet, "/swagger/doc.json", nil)
	expectStatus(t, rec, http.StatusOK)

	var doc struct {
		Swagger  string                     `json:"swagger"`
		BasePath string                     `json:"basePath"`
		Info     struct{ Title string }     `json:"info"`
		Paths    map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("doc.json is not JSON: %v", err)
	}
	if doc.Swagger != "2.0" || doc.BasePath != "/api/v1" || doc.Info.Title != "Tabline API" {
		t.Errorf("doc header = %s %s %q", doc.Swagger, doc.BasePath, doc.Info.Title)
	}
	for _, path := range []string{"/bootstrap", "/delta", "/outbox", "/orders/{id}/mutations", "/payments/{ref}/capture"} {
		if _, ok := doc.Paths[path]; !ok {
			t.Errorf("doc.json has no %s", path)
		}
	}

	rec = f.do(t, models.Actor{}, http.MethodGet, "/swagger/index.html", nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "swagger-ui") {
		t.Error("index.html does not mount swagger-ui")
	}
}
