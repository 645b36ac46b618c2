//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/docregistry/apiserver/config"
	"github.com/docregistry/apiserver/internal/db"
	"github.com/docregistry/apiserver/internal/logger"
	"github.com/docregistry/apiserver/internal/server"
)

const (
	serverPort = 18080
)

var baseURL = fmt.Sprintf("http://localhost:%d", serverPort)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	setEnv()

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	serverCtx, stopServer := context.WithCancel(context.Background())
	done, err := startServer(serverCtx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		stopServer()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		stopServer()
		<-done
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	stopServer()
	<-done
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestRegistryLifecycle(t *testing.T) {
	suffix := time.Now().UnixNano()
	email := fmt.Sprintf("clerk_%d@example.com", suffix)
	password := "testpass123!"

	c := newClient(t)

	c.mustDo(t, `mutation($in: RegisterInput!) { register(input: $in) { id } }`, map[string]any{
		"in": map[string]any{
			"username": fmt.Sprintf("clerk_%d", suffix),
			"email":    email,
			"password": password,
		},
	}, nil)

	if err := promoteToClerk(email); err != nil {
		t.Fatalf("promote user: %v", err)
	}

	var login struct {
		Login struct {
			AccessToken string `json:"accessToken"`
			User        struct {
				Clerk bool `json:"clerk"`
			} `json:"user"`
		} `json:"login"`
	}
	c.mustDo(t, `mutation($e: String!, $p: String!) { login(email: $e, password: $p) { accessToken user { clerk } } }`,
		map[string]any{"e": email, "p": password}, &login)
	if login.Login.AccessToken == "" || !login.Login.User.Clerk {
		t.Fatalf("unexpected login result: %+v", login.Login)
	}
	c.token = login.Login.AccessToken

	var country struct {
		CreateCountry struct{ ID int } `json:"createCountry"`
	}
	code := fmt.Sprintf("%c%c", 'A'+rune(suffix%26), 'A'+rune((suffix/26)%26))
	c.mustDo(t, `mutation($c: String!) { createCountry(code: $c, name: "Testland") { id } }`, map[string]any{"c": code}, &country)

	addressID := func(street string) int {
		var out struct {
			CreateAddress struct{ ID int } `json:"createAddress"`
		}
		c.mustDo(t, `mutation($in: AddressInput!) { createAddress(input: $in) { id } }`, map[string]any{
			"in": map[string]any{"street": street, "city": "Springfield", "countryId": country.CreateCountry.ID},
		}, &out)
		return out.CreateAddress.ID
	}
	oldAddress := addressID("1 Old Road")
	newAddress := addressID("2 New Street")

	var person struct {
		CreatePerson struct{ ID int } `json:"createPerson"`
	}
	c.mustDo(t, `mutation { createPerson(input: {firstName: "Ada", lastName: "Lovelace"}) { id } }`, nil, &person)
	personID := person.CreatePerson.ID

	c.mustDo(t, `mutation($p: Int!, $a: Int!) { addResidencyHistory(personId: $p, addressId: $a, from: "2020-01-01", to: "2020-06-30") { id } }`,
		map[string]any{"p": personID, "a": oldAddress}, nil)
	c.mustDo(t, `mutation($p: Int!, $a: Int!) { movePerson(personId: $p, addressId: $a, since: "2020-07-01") { id } }`,
		map[string]any{"p": personID, "a": newAddress}, nil)

	var at struct {
		Past    *struct{ Address struct{ ID int } } `json:"past"`
		Now     *struct{ Address struct{ ID int } } `json:"now"`
		Earlier *struct{ Address struct{ ID int } } `json:"earlier"`
	}
	c.mustDo(t, `query($p: Int!) {
		past: addressAt(personId: $p, at: "2020-03-15") { address { id } }
		now: addressAt(personId: $p) { address { id } }
		earlier: addressAt(personId: $p, at: "2019-01-01") { address { id } }
	}`, map[string]any{"p": personID}, &at)
	if at.Past == nil || at.Past.Address.ID != oldAddress {
		t.Fatalf("expected old address on 2020-03-15, got %+v", at.Past)
	}
	if at.Now == nil || at.Now.Address.ID != newAddress {
		t.Fatalf("expected new address now, got %+v", at.Now)
	}
	if at.Earlier != nil {
		t.Fatalf("expected no address on 2019-01-01, got %+v", at.Earlier)
	}

	var doc struct {
		CreateDocument struct {
			ID            int `json:"id"`
			SenderAddress struct {
				Address struct{ ID int }
			} `json:"senderAddress"`
		} `json:"createDocument"`
	}
	c.mustDo(t, `mutation($in: DocumentInput!) { createDocument(input: $in) { id senderAddress { address { id } } } }`, map[string]any{
		"in": map[string]any{
			"referenceNumber": fmt.Sprintf("IN-%d", suffix),
			"title":           "Letter",
			"kind":            "INCOMING",
			"senderId":        personID,
			"documentDate":    "2020-02-01",
		},
	}, &doc)
	if doc.CreateDocument.SenderAddress.Address.ID != oldAddress {
		t.Fatalf("expected sender address at document date to be the old one")
	}

	if status := c.uploadAttachment(t, doc.CreateDocument.ID, "scan.pdf", []byte("%PDF-1.4 test")); status != http.StatusServiceUnavailable && status != http.StatusOK {
		t.Fatalf("unexpected attachment upload status %d", status)
	}

	first := c.refresh(t)
	if first.Status != "ok" || first.AccessToken == "" {
		t.Fatalf("expected refresh to succeed, got %+v", first)
	}

	c.token = first.AccessToken
	c.mustDo(t, `mutation { revokeSessions }`, nil, nil)

	// revokeSessions clears the cookie; put the old one back to check it is dead.
	c.restoreCookie(t)
	if second := c.refresh(t); second.Status != "error" || second.AccessToken != "" {
		t.Fatalf("expected revoked refresh token to fail, got %+v", second)
	}
}

func TestGuardsReject(t *testing.T) {
	c := newClient(t)

	errs := c.do(t, `{ countries { id } }`, nil, nil)
	if len(errs) == 0 || errs[0] != "not authenticated" {
		t.Fatalf("expected not authenticated, got %v", errs)
	}

	req, _ := http.NewRequest(http.MethodGet, baseURL+"/documents/1/attachment", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

type client struct {
	http       *http.Client
	token      string
	lastCookie *http.Cookie
}

func newClient(t *testing.T) *client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &client{http: &http.Client{Jar: jar, Timeout: 10 * time.Second}}
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *client) do(t *testing.T, query string, vars map[string]any, out any) []string {
	t.Helper()

	body, err := json.Marshal(map[string]any{"query": query, "variables": vars})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, baseURL+"/graphql", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		t.Fatalf("graphql: %v", err)
	}
	defer resp.Body.Close()
	c.remember(resp)

	var parsed gqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var messages []string
	for _, e := range parsed.Errors {
		messages = append(messages, e.Message)
	}
	if out != nil && len(parsed.Data) > 0 {
		if err := json.Unmarshal(parsed.Data, out); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return messages
}

func (c *client) mustDo(t *testing.T, query string, vars map[string]any, out any) {
	t.Helper()
	if errs := c.do(t, query, vars, out); len(errs) > 0 {
		t.Fatalf("graphql errors: %s", strings.Join(errs, "; "))
	}
}

func (c *client) remember(resp *http.Response) {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "jid" && cookie.Value != "" {
			c.lastCookie = cookie
		}
	}
}

func (c *client) restoreCookie(t *testing.T) {
	t.Helper()
	if c.lastCookie == nil {
		t.Fatal("no refresh cookie seen")
	}
	u, _ := http.NewRequest(http.MethodPost, baseURL+"/refresh_token", nil)
	restored := *c.lastCookie
	restored.Path = "/refresh_token"
	c.http.Jar.SetCookies(u.URL, []*http.Cookie{&restored})
}

type refreshResponse struct {
	Status      string `json:"status"`
	AccessToken string `json:"accessToken"`
}

func (c *client) refresh(t *testing.T) refreshResponse {
	t.Helper()
	resp, err := c.http.Post(baseURL+"/refresh_token", "application/json", nil)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status %d", resp.StatusCode)
	}
	c.remember(resp)

	var parsed refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode refresh: %v", err)
	}
	return parsed
}

func (c *client) uploadAttachment(t *testing.T, documentID int, filename string, data []byte) int {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req, err := http.NewRequest(http.MethodPut, fmt.Sprintf("%s/documents/%d/attachment", baseURL, documentID), &body)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}

func promoteToClerk(email string) error {
	conn, err := sql.Open("postgres", db.URL(config.LoadConfig().Database))
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := conn.ExecContext(ctx, `UPDATE users SET clerk = TRUE WHERE lower(email) = lower($1)`, email)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n != 1 {
		return fmt.Errorf("expected to promote one user, promoted %d", n)
	}
	return nil
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	migrationsURL := "file://" + filepath.Join(root, "internal", "db", "migrations")

	// Wait for postgres to accept connections.
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	conn, err := db.Open(ctx, config.LoadConfig())
	if err != nil {
		return err
	}
	_ = conn.Close()

	migrator, err := migrate.New(migrationsURL, db.URL(config.LoadConfig().Database))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func setEnv() {
	_ = os.Setenv("ACCESS_TOKEN_SECRET", "e2e-access-secret")
	_ = os.Setenv("REFRESH_TOKEN_SECRET", "e2e-refresh-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "docregistry")
	_ = os.Setenv("DB_PASSWORD", "docregistry")
	_ = os.Setenv("DB_NAME", "docregistry")
	_ = os.Setenv("DB_USE_SSL", "false")
	_ = os.Setenv("STORAGE_BACKEND", "memory")
	_ = os.Setenv("MQ_BACKEND", "none")
}

func startServer(ctx context.Context) (<-chan error, error) {
	srv, err := server.New(context.Background(), config.LoadConfig(), logger.Nop())
	if err != nil {
		return nil, err
	}

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()
	return done, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
