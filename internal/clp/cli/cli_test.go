package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/clip.cheap/internal/clp/client"
	"github.com/abdul-hamid-achik/clip.cheap/internal/clp/config"
	"github.com/stretchr/testify/mock"
)

func resetFlags() {
	jsonOutput, quietMode, noColor = false, false, true
	paramsFile, waitForJob, fetchOnDone = "", false, ""
	downloadFormat, downloadHeight = "", 0
	statusWatch = false
	historyLimit = 20
	fetchOutput = ""
	streamParamsFile = ""
	noBrowser = false
}

// run executes the root command against m with an isolated HOME.
func run(t *testing.T, m *client.MockClient, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvAPIKey, "test-token")
	resetFlags()

	orig := newClient
	newClient = func(*config.Config) client.ClientInterface { return m }
	t.Cleanup(func() { newClient = orig })

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return buf.String(), err
}

func writeParams(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "params.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRootCommand(t *testing.T) {
	out, err := run(t, new(client.MockClient), "--help")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for _, want := range []string{"clip.cheap", "download", "stream", "upgrade"} {
		if !strings.Contains(out, want) {
			t.Errorf("help output should mention %q", want)
		}
	}
}

func TestRequireAuth(t *testing.T) {
	cfg = &config.Config{}
	if err := requireAuth(); err == nil {
		t.Fatal("requireAuth() should fail without a token")
	}

	cfg = &config.Config{APIKey: "token"}
	if err := requireAuth(); err != nil {
		t.Fatalf("requireAuth() error = %v", err)
	}
}

func TestCreate(t *testing.T) {
	m := new(client.MockClient)
	params := writeParams(t, `{"clips":[{"sourceId":"a"}]}`)
	m.On("CreateJob", mock.Anything, "exports", json.RawMessage(`{"clips":[{"sourceId":"a"}]}`)).
		Return(&client.CreateResponse{JobID: "job-1", Status: "PENDING"}, nil)

	out, err := run(t, m, "create", "exports", "-f", params, "--json")
	if err != nil {
		t.Fatalf("create error = %v", err)
	}

	var got client.CreateResponse
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %q", out)
	}
	if got.JobID != "job-1" {
		t.Errorf("JobID = %q, want job-1", got.JobID)
	}
	m.AssertExpectations(t)
}

func TestCreate_InvalidJSON(t *testing.T) {
	m := new(client.MockClient)
	params := writeParams(t, `{not json`)

	_, err := run(t, m, "create", "exports", "-f", params)
	if err == nil || !strings.Contains(err.Error(), "not valid JSON") {
		t.Fatalf("create error = %v, want invalid JSON", err)
	}
	m.AssertNotCalled(t, "CreateJob", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreate_RejectsStreams(t *testing.T) {
	m := new(client.MockClient)
	params := writeParams(t, `{}`)

	_, err := run(t, m, "create", "streams", "-f", params)
	if err == nil || !strings.Contains(err.Error(), "clp stream start") {
		t.Fatalf("create error = %v", err)
	}
}

func TestDownload_Wait(t *testing.T) {
	m := new(client.MockClient)
	m.On("Download", mock.Anything, &client.DownloadRequest{URL: "https://youtu.be/abc", MaxHeight: 720}).
		Return(&client.CreateResponse{JobID: "job-2", Status: "PENDING"}, nil)
	m.On("WaitForJob", mock.Anything, "downloads", "job-2", pollInterval, mock.Anything, mock.Anything).
		Return(&client.Job{ID: "job-2", Status: client.StatusCompleted, Progress: 100}, nil)

	out, err := run(t, m, "download", "https://youtu.be/abc", "--max-height", "720", "--wait", "--quiet")
	if err != nil {
		t.Fatalf("download error = %v", err)
	}
	if out != "" {
		t.Errorf("quiet output = %q, want empty", out)
	}
	m.AssertExpectations(t)
}

func TestDownload_WaitFailed(t *testing.T) {
	m := new(client.MockClient)
	m.On("Download", mock.Anything, mock.Anything).
		Return(&client.CreateResponse{JobID: "job-3", Status: "PENDING"}, nil)
	m.On("WaitForJob", mock.Anything, "downloads", "job-3", mock.Anything, mock.Anything, mock.Anything).
		Return(&client.Job{ID: "job-3", Status: client.StatusFailed, Error: "yt-dlp exited with 1"}, nil)

	_, err := run(t, m, "download", "https://youtu.be/abc", "--wait", "--quiet")
	if err == nil || !strings.Contains(err.Error(), "yt-dlp exited") {
		t.Fatalf("download error = %v, want job failure", err)
	}
}

func TestStatus(t *testing.T) {
	m := new(client.MockClient)
	m.On("GetJob", mock.Anything, "loops", "job-4").
		Return(&client.Job{ID: "job-4", Kind: "LOOP", Status: "PROCESSING", Progress: 40, CreatedAt: time.Now()}, nil)

	out, err := run(t, m, "status", "loops", "job-4")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	if !strings.Contains(out, "PROCESSING") || !strings.Contains(out, "40%") {
		t.Errorf("status output = %q", out)
	}
}

func TestStatus_NotFound(t *testing.T) {
	m := new(client.MockClient)
	m.On("GetJob", mock.Anything, "loops", "missing").
		Return(nil, &client.APIError{StatusCode: 404, Code: "not_found", Message: "job not found"})

	_, err := run(t, m, "status", "loops", "missing")
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "not_found" {
		t.Fatalf("status error = %v, want not_found", err)
	}
}

func TestHistory(t *testing.T) {
	m := new(client.MockClient)
	m.On("History", mock.Anything, "exports", 5).Return([]client.Job{
		{ID: "job-b", Status: "COMPLETED", Progress: 100, CreatedAt: time.Now()},
		{ID: "job-a", Status: "FAILED", CreatedAt: time.Now().Add(-2 * time.Hour)},
	}, nil)

	out, err := run(t, m, "history", "exports", "-n", "5")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if strings.Index(out, "job-b") > strings.Index(out, "job-a") {
		t.Errorf("history should keep server order, got %q", out)
	}
	if !strings.Contains(out, "2h ago") {
		t.Errorf("history output = %q, want relative time", out)
	}
}

func TestFetch(t *testing.T) {
	m := new(client.MockClient)
	body := io.NopCloser(strings.NewReader("mp4-bytes"))
	m.On("Fetch", mock.Anything, "exports", "job-5").
		Return(body, &client.File{Filename: "EXPORT-job5.mp4", ContentType: "video/mp4", Size: 9}, nil)

	dir := t.TempDir()
	_, err := run(t, m, "fetch", "exports", "job-5", "-o", dir, "--quiet")
	if err != nil {
		t.Fatalf("fetch error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "EXPORT-job5.mp4"))
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if string(data) != "mp4-bytes" {
		t.Errorf("output = %q", data)
	}
	if _, err := os.Stat(filepath.Join(dir, "EXPORT-job5.mp4.part")); !os.IsNotExist(err) {
		t.Error("partial file should be renamed")
	}
}

func TestStream(t *testing.T) {
	m := new(client.MockClient)
	params := writeParams(t, `{"source":"in.mp4"}`)
	m.On("StartStream", mock.Anything, json.RawMessage(`{"source":"in.mp4"}`)).
		Return(&client.CreateResponse{JobID: "job-6", Status: "STARTING"}, nil)
	m.On("StopStream", mock.Anything, "job-6").
		Return(&client.Job{ID: "job-6", Status: client.StatusEnded}, nil)

	out, err := run(t, m, "stream", "start", "-f", params)
	if err != nil {
		t.Fatalf("stream start error = %v", err)
	}
	if !strings.Contains(out, "STARTING") {
		t.Errorf("start output = %q", out)
	}

	out, err = run(t, m, "stream", "stop", "job-6")
	if err != nil {
		t.Fatalf("stream stop error = %v", err)
	}
	if !strings.Contains(out, "ENDED") {
		t.Errorf("stop output = %q", out)
	}
	m.AssertExpectations(t)
}

func TestSubscription(t *testing.T) {
	m := new(client.MockClient)
	m.On("GetSubscription", mock.Anything).Return(&client.Subscription{
		Tier: "FREE", ExportsUsed: 1, ExportsLimit: 3, ExportsRemaining: 2,
	}, nil)

	out, err := run(t, m, "subscription")
	if err != nil {
		t.Fatalf("subscription error = %v", err)
	}
	if !strings.Contains(out, "1 of 3 used, 2 remaining") {
		t.Errorf("subscription output = %q", out)
	}
}

func TestUpgrade(t *testing.T) {
	m := new(client.MockClient)
	m.On("Checkout", mock.Anything, "pro").Return(&client.CheckoutResponse{URL: "https://checkout.stripe.com/c/pay/cs_test"}, nil)

	var opened string
	orig := openURL
	openURL = func(u string) error { opened = u; return nil }
	t.Cleanup(func() { openURL = orig })

	if _, err := run(t, m, "upgrade", "PRO"); err != nil {
		t.Fatalf("upgrade error = %v", err)
	}
	if opened != "https://checkout.stripe.com/c/pay/cs_test" {
		t.Errorf("opened = %q", opened)
	}
}

func TestUpgrade_NoBrowser(t *testing.T) {
	m := new(client.MockClient)
	m.On("Checkout", mock.Anything, "creator").Return(&client.CheckoutResponse{URL: "https://checkout.example/x"}, nil)

	orig := openURL
	openURL = func(string) error { t.Error("browser should not open"); return nil }
	t.Cleanup(func() { openURL = orig })

	out, err := run(t, m, "upgrade", "creator", "--no-browser")
	if err != nil {
		t.Fatalf("upgrade error = %v", err)
	}
	if strings.TrimSpace(out) != "https://checkout.example/x" {
		t.Errorf("output = %q", out)
	}
}

func TestAuthSetKey(t *testing.T) {
	m := new(client.MockClient)
	home := t.TempDir()

	resetFlags()
	t.Setenv("HOME", home)
	t.Setenv(config.EnvAPIKey, "")
	orig := newClient
	newClient = func(*config.Config) client.ClientInterface { return m }
	t.Cleanup(func() { newClient = orig })

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"auth", "set-key", "abcdefghijklmnop"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("set-key error = %v", err)
	}
	if !strings.Contains(buf.String(), "abcdef...mnop") {
		t.Errorf("output should mask the token, got %q", buf.String())
	}

	loaded, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.APIKey != "abcdefghijklmnop" {
		t.Errorf("stored key = %q", loaded.APIKey)
	}
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"abc", "****"},
		{"abcdefgh", "ab...gh"},
		{"abcdefghijklmnop", "abcdef...mnop"},
	}
	for _, tt := range tests {
		if got := maskAPIKey(tt.key); got != tt.want {
			t.Errorf("maskAPIKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := formatSize(tt.bytes); got != tt.want {
			t.Errorf("formatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestResolveDest(t *testing.T) {
	dir := t.TempDir()
	if got := resolveDest("", "LOOP-1234abcd.gif", "id"); got != "LOOP-1234abcd.gif" {
		t.Errorf("default dest = %q", got)
	}
	if got := resolveDest(dir, "../evil.mp4", "id"); got != filepath.Join(dir, "evil.mp4") {
		t.Errorf("dir dest = %q", got)
	}
	if got := resolveDest("out.mp4", "x.mp4", "id"); got != "out.mp4" {
		t.Errorf("explicit dest = %q", got)
	}
}

func TestIsFatal(t *testing.T) {
	if !isFatal(&client.APIError{StatusCode: 401}) {
		t.Error("401 should be fatal")
	}
	if isFatal(&client.APIError{StatusCode: 429}) {
		t.Error("429 should be retried")
	}
	if isFatal(errors.New("connection refused")) {
		t.Error("network errors should be retried")
	}
}
