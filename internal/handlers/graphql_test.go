package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/graphql-go/graphql"
)

func testSchema(t *testing.T) graphql.Schema {
	t.Helper()
	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name: "Query",
			Fields: graphql.Fields{
				"ping": &graphql.Field{
					Type:    graphql.String,
					Resolve: func(graphql.ResolveParams) (interface{}, error) { return "pong", nil },
				},
			},
		}),
		Mutation: graphql.NewObject(graphql.ObjectConfig{
			Name: "Mutation",
			Fields: graphql.Fields{
				"touch": &graphql.Field{
					Type:    graphql.Boolean,
					Resolve: func(graphql.ResolveParams) (interface{}, error) { return true, nil },
				},
			},
		}),
	})
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	return schema
}

func TestGraphQLHandlerMethods(t *testing.T) {
	handler := NewGraphQLHandler(testSchema(t), RefreshCookie{Name: "jid", Path: "/refresh_token"}, nil)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"post query", http.MethodPost, "/graphql", `{"query":"{ ping }"}`, http.StatusOK},
		{"post mutation", http.MethodPost, "/graphql", `{"query":"mutation { touch }"}`, http.StatusOK},
		{"get query", http.MethodGet, "/graphql?query=" + url.QueryEscape("{ ping }"), "", http.StatusOK},
		{"get mutation", http.MethodGet, "/graphql?query=" + url.QueryEscape("mutation { touch }"), "", http.StatusMethodNotAllowed},
		{"bad json", http.MethodPost, "/graphql", `{`, http.StatusBadRequest},
		{"missing query", http.MethodPost, "/graphql", `{}`, http.StatusBadRequest},
		{"bad variables", http.MethodGet, "/graphql?query=x&variables=" + url.QueryEscape("{"), "", http.StatusBadRequest},
		{"put", http.MethodPut, "/graphql", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestGraphQLHandlerResult(t *testing.T) {
	handler := NewGraphQLHandler(testSchema(t), RefreshCookie{Name: "jid"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ ping }"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var body struct {
		Data struct {
			Ping string `json:"ping"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Ping != "pong" {
		t.Fatalf("unexpected result %+v", body)
	}
}
