package router

import (
	"context"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
)

const openAPIPath = "../../../public/docs/v1/openapi.yml"

func loadDoc(t *testing.T) *openapi3.T {
	t.Helper()
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(openAPIPath)
	if err != nil {
		t.Fatalf("load openapi document: %v", err)
	}
	return doc
}

func TestOpenAPIDocumentIsValid(t *testing.T) {
	t.Parallel()
	doc := loadDoc(t)
	if err := doc.Validate(context.Background()); err != nil {
		t.Fatalf("openapi document invalid: %v", err)
	}
}

func TestOpenAPIDocumentCoversRoutes(t *testing.T) {
	t.Parallel()
	doc := loadDoc(t)

	wantPaths := []string{
		"/create-tx",
		"/i/{invoiceId}",
		"/pay/{blob}",
		"/api/v1/stores/{id}/public-profile",
		"/api/v1/stores/{id}/invoices",
		"/api/v1/stores/{id}/invoices/{invoiceId}",
		"/api/v1/stores/{id}/invoices/{invoiceId}/magic-link",
		"/api/v1/stores/{id}/refunds/create-tx",
		"/api/v1/stores/{id}/subscriptions",
		"/api/v1/stores/{id}/subscriptions/{subId}/create-tx",
		"/api/admin/set-sbtc-token",
		"/api/admin/stores/{id}/sync-onchain",
		"/api/admin/stores/{id}/rotate-keys",
		"/api/admin/webhooks/retry",
		"/api/admin/webhooks/failed",
	}
	for _, path := range wantPaths {
		if doc.Paths.Find(path) == nil {
			t.Errorf("path %s missing from openapi document", path)
		}
	}
}

func TestOpenAPIErrorSchemaHasStableCode(t *testing.T) {
	t.Parallel()
	doc := loadDoc(t)

	errSchema, ok := doc.Components.Schemas["Error"]
	if !ok || errSchema.Value == nil {
		t.Fatal("Error schema missing from openapi components")
	}
	if _, ok := errSchema.Value.Properties["error"]; !ok {
		t.Error("Error schema must carry the machine-readable error property")
	}
}
