//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Z-SIS/sis-ai-helper-sub000/internal/api/handlers"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/audit"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/domain"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/knowledge"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/openai"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/prompt"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/repository"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/retrieval"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/server"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/service"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/storage"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/testutil"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/verifier"
	"github.com/jackc/pgx/v5/pgxpool"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	Gateway      *scriptedGateway
	HTTPClient   *http.Client
}

// scriptedGateway replaces the model gateway with queued canned outputs so
// the full pipeline runs without a live model.
type scriptedGateway struct {
	mu       sync.Mutex
	queue    []string
	fallback string
	calls    int
}

func newScriptedGateway(fallback string) *scriptedGateway {
	return &scriptedGateway{fallback: fallback}
}

// Enqueue schedules outputs returned before the fallback, in order.
func (g *scriptedGateway) Enqueue(outputs ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queue = append(g.queue, outputs...)
}

func (g *scriptedGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *scriptedGateway) Generate(ctx context.Context, prompt string, cfg openai.GenerationConfig) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if len(g.queue) > 0 {
		out := g.queue[0]
		g.queue = g.queue[1:]
		return out, nil
	}
	return g.fallback, nil
}

// ValidExtractionOutput is the canned model answer used by default. Its
// values are all supported by the seeded knowledge store.
const ValidExtractionOutput = `{"company_name":"Acme Corp","revenue":"$10M","registration_number":"HRB 12345","confidence":0.95}`

// SetupE2EEnv creates a full E2E test environment with containers and server
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	// Start PostgreSQL container
	pgC := testutil.NewPostgresContainer(ctx, t)

	// Start RustFS container
	s3C := testutil.NewRustFSContainer(ctx, t)

	// Create connection pool and run migrations
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	// Create S3 client
	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "test-exports",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}

	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	// Find free port for server
	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	gateway := newScriptedGateway(ValidExtractionOutput)

	// Start HTTP server
	serverURL, serverCloser := startServer(t, pool, gateway, port)

	env := &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		S3Client:     s3Client,
		Gateway:      gateway,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}

	return env
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// seedKnowledge builds the knowledge store the retriever grounds against.
func seedKnowledge(t *testing.T) *knowledge.Store {
	verified := time.Now().UTC().Add(-24 * time.Hour)
	entries := []domain.KnowledgeEntry{
		{
			Topic:        "acme corp",
			Content:      "Acme Corp reported $10M revenue in fiscal 2025. The company is registered in Berlin under registration number HRB 12345.",
			Summaries:    domain.Summaries{Short: "Acme Corp financials and registration"},
			Reliability:  0.9,
			SourceType:   domain.SourceTypePrimary,
			LastVerified: verified,
			Tags:         []string{"company", "revenue"},
		},
		{
			Topic:        "acme corp hiring",
			Content:      "Acme Corp grew its staff to 120 employees during 2025, mostly in engineering.",
			Summaries:    domain.Summaries{Short: "Acme Corp headcount"},
			Reliability:  0.75,
			SourceType:   domain.SourceTypeSecondary,
			LastVerified: verified,
			Tags:         []string{"company", "employee"},
		},
	}

	store, err := knowledge.NewStore(entries)
	if err != nil {
		t.Fatalf("failed to seed knowledge store: %v", err)
	}
	return store
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil)
}

// GetRaw performs a GET request and returns the raw body and content type.
func (e *E2ETestEnv) GetRaw(path string) ([]byte, string, error) {
	resp, err := e.HTTPClient.Get(e.ServerURL + path)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode >= 400 {
		return nil, "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, body)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("POST", path, body)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// startServer starts the HTTP server with the full pipeline wired to the
// Postgres audit store and the scripted gateway.
func startServer(t *testing.T, pool *pgxpool.Pool, gateway *scriptedGateway, port int) (string, func()) {
	store := seedKnowledge(t)
	retriever := retrieval.NewRetriever(store, nil, retrieval.DefaultConfig())
	assembler := prompt.NewAssembler(16000)
	fieldVerifier := verifier.New(0.8)
	auditLogger := audit.NewLogger(repository.NewAuditRepository(pool))

	pipeline := service.NewPipelineService(retriever, assembler, gateway, fieldVerifier, auditLogger, service.PipelineConfig{
		MaxSources:   5,
		MinRelevance: 0.3,
	})

	cfg := server.RouterConfig{
		TaskHandler:  handlers.NewTaskHandler(pipeline),
		AuditHandler: handlers.NewAuditHandler(auditLogger),
	}

	router := server.NewRouter(cfg)
	addr := fmt.Sprintf(":%d", port)

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	// Wait for server to start
	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
