package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"

	"github.com/docregistry/apiserver/internal/graph"
	"github.com/docregistry/apiserver/internal/logger"
)

const maxGraphQLBodyBytes = 1 << 20

type graphQLRequest struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
	OperationName string                 `json:"operationName"`
}

// GraphQLHandler executes GraphQL operations against the registry schema.
type GraphQLHandler struct {
	schema graphql.Schema
	cookie RefreshCookie
	log    *logger.Logger
}

func NewGraphQLHandler(schema graphql.Schema, cookie RefreshCookie, log *logger.Logger) *GraphQLHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GraphQLHandler{schema: schema, cookie: cookie, log: log.Named("graphql")}
}

// ServeHTTP accepts POST with a JSON body and GET with query parameters.
// Mutations are only accepted over POST.
func (h *GraphQLHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req graphQLRequest
	switch r.Method {
	case http.MethodPost:
		r.Body = http.MaxBytesReader(w, r.Body, maxGraphQLBodyBytes)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request")
			return
		}
	case http.MethodGet:
		q := r.URL.Query()
		req.Query = q.Get("query")
		req.OperationName = q.Get("operationName")
		if v := q.Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &req.Variables); err != nil {
				writeError(w, http.StatusBadRequest, "invalid variables")
				return
			}
		}
		if isMutation(req.Query) {
			writeError(w, http.StatusMethodNotAllowed, "mutations require POST")
			return
		}
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "missing query")
		return
	}

	ctx := graph.WithRequest(r.Context(), graph.Request{
		Authorization: r.Header.Get("Authorization"),
		ClientIP:      clientIP(r),
		Session:       cookieSession{w: w, cookie: h.cookie},
	})
	result := graphql.Do(graphql.Params{
		Schema:         h.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        ctx,
	})
	writeJSON(w, http.StatusOK, result)
}

func isMutation(query string) bool {
	doc, err := parser.Parse(parser.ParseParams{Source: source.NewSource(&source.Source{Body: []byte(query)})})
	if err != nil {
		return false
	}
	for _, def := range doc.Definitions {
		if op, ok := def.(*ast.OperationDefinition); ok && op.Operation == ast.OperationTypeMutation {
			return true
		}
	}
	return false
}
