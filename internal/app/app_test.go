package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/lectern-backend/internal/clients/openai"
	"github.com/yungbote/lectern-backend/internal/data/repos/testutil"
	"github.com/yungbote/lectern-backend/internal/modules/quizgen"
	"github.com/yungbote/lectern-backend/internal/modules/quizgen/steps"
	"github.com/yungbote/lectern-backend/internal/services"
)

type stubOpenAI struct{}

func (stubOpenAI) Complete(ctx context.Context, req steps.CompletionRequest) (string, error) {
	return "[]", nil
}

func (stubOpenAI) Transcribe(ctx context.Context, audioPath string) (string, error) {
	return "", nil
}

func TestWireClientsRejectsBadConfig(t *testing.T) {
	log := testutil.Logger(t)
	if _, err := wireClients(log, Config{TranscribeProvider: TranscribeOpenAI}); !errors.Is(err, openai.ErrMissingAPIKey) {
		t.Fatalf("missing key should fail, got %v", err)
	}
	cfg := Config{OpenAI: openai.Config{APIKey: "sk-test"}, TranscribeProvider: "whisper-cpp"}
	if _, err := wireClients(log, cfg); err == nil {
		t.Fatalf("unknown provider should fail")
	}
	clientset, err := wireClients(log, Config{OpenAI: openai.Config{APIKey: "sk-test"}, TranscribeProvider: TranscribeOpenAI})
	if err != nil {
		t.Fatalf("wireClients: %v", err)
	}
	defer clientset.Close()
	if clientset.Transcriber == nil || clientset.Locker == nil || clientset.AudioBucket != nil {
		t.Fatalf("unexpected clients %+v", clientset)
	}
}

func TestWireServicesAndServer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := testutil.Logger(t)
	db := testutil.DB(t)
	cfg := Config{
		Auth:     services.AuthConfig{JWTSecret: "wiring-secret"},
		AudioDir: t.TempDir(),
	}
	clientset := Clients{
		OpenAI:      stubOpenAI{},
		Transcriber: stubOpenAI{},
		Locker:      quizgen.NewMemoryLocker(),
	}

	reposet := wireRepos(db, log)
	serviceset, err := wireServices(db, log, cfg, reposet, clientset)
	if err != nil {
		t.Fatalf("wireServices: %v", err)
	}
	if serviceset.Worker == nil || serviceset.Generation == nil || serviceset.Report == nil {
		t.Fatalf("services not wired: %+v", serviceset)
	}

	server := wireServer(log, cfg, wireHandlers(log, db, serviceset), wireMiddleware(log, serviceset))
	for _, tc := range []struct {
		path string
		want int
	}{
		{"/healthcheck", http.StatusOK},
		{"/api/me", http.StatusUnauthorized},
	} {
		w := httptest.NewRecorder()
		server.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if w.Code != tc.want {
			t.Fatalf("GET %s = %d, want %d", tc.path, w.Code, tc.want)
		}
	}

	claimed, err := serviceset.Generation.RunNext(context.Background())
	if err != nil || claimed {
		t.Fatalf("empty queue: claimed=%v err=%v", claimed, err)
	}
}
