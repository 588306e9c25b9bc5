package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rovlink/rovconsole/internal/router"
	"github.com/rovlink/rovconsole/internal/store"
	"github.com/rovlink/rovconsole/internal/version"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgFile, outputFormat = "", "table"

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rovconsole.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out, "rovconsole ") {
		t.Errorf("version output = %q", out)
	}

	out, err = runCLI(t, "version", "-o", "json")
	if err != nil {
		t.Fatalf("version -o json failed: %v", err)
	}
	var info version.Info
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decode version json: %v", err)
	}
	if info.Version != version.Version {
		t.Errorf("Version = %q, want %q", info.Version, version.Version)
	}
}

func TestUnknownOutputFormat(t *testing.T) {
	if _, err := runCLI(t, "version", "-o", "xml"); err == nil {
		t.Error("expected an error for -o xml")
	}
}

func TestAddressesCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "addresses.db")
	s, err := store.OpenSQLite(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	for _, addr := range []string{"10.0.0.2", "10.0.0.3", "10.0.0.2"} {
		if err := s.Remember(context.Background(), addr); err != nil {
			t.Fatalf("Remember failed: %v", err)
		}
	}
	s.Close()

	cfg := writeConfig(t, fmt.Sprintf("storage:\n  path: %s\n", dbPath))

	out, err := runCLI(t, "addresses", "--config", cfg, "-o", "json")
	if err != nil {
		t.Fatalf("addresses failed: %v", err)
	}
	var endpoints []store.Endpoint
	if err := json.Unmarshal([]byte(out), &endpoints); err != nil {
		t.Fatalf("decode addresses json: %v\n%s", err, out)
	}
	if len(endpoints) != 2 {
		t.Fatalf("got %d endpoints, want 2", len(endpoints))
	}
	if endpoints[0].Address != "10.0.0.2" || endpoints[0].ConnectCount != 2 {
		t.Errorf("first endpoint = %+v, want 10.0.0.2 with 2 connections", endpoints[0])
	}

	out, err = runCLI(t, "addresses", "--config", cfg)
	if err != nil {
		t.Fatalf("addresses table failed: %v", err)
	}
	if !strings.Contains(out, "ADDRESS") || !strings.Contains(out, "10.0.0.3") {
		t.Errorf("table output = %q", out)
	}
}

func TestAddressesCommand_StorageDisabled(t *testing.T) {
	cfg := writeConfig(t, "storage:\n  disabled: true\n")
	if _, err := runCLI(t, "addresses", "--config", cfg); err == nil {
		t.Error("expected an error when storage is disabled")
	}
}

func TestSendCommand(t *testing.T) {
	received := make(chan string, 1)
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- string(msg)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	cfg := writeConfig(t, fmt.Sprintf(`vehicle:
  port: %s
storage:
  disabled: true
logging:
  level: error
`, u.Port()))

	out, err := runCLI(t, "send", "--config", cfg, "--", "127.0.0.1", "cameraTilt", "-30")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if !strings.Contains(out, "connected to 127.0.0.1") {
		t.Errorf("output = %q", out)
	}

	select {
	case got := <-received:
		if want := `{"command":"update","cameraTilt":-30}`; got != want {
			t.Errorf("vehicle received %s, want %s", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("vehicle never received the command")
	}
}

func TestPrintMessage(t *testing.T) {
	depth, battery := 4.5, 91
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	var out bytes.Buffer
	printMessage(&out, router.Message{
		Type:       router.TypeSensor,
		Sensor:     &router.SensorReading{Depth: &depth, Battery: &battery},
		ReceivedAt: at,
	}, false)
	printMessage(&out, router.Message{
		Type:       router.TypeCamera,
		Camera:     &router.CameraFrame{Camera: "camera1", JPEG: []byte{0xff, 0xd8, 0xff}},
		ReceivedAt: at,
	}, false)

	want := "09:30:00.000 [SENSOR] depth 4.50m battery 91%\n" +
		"09:30:00.000 [CAMERA] camera=camera1 bytes=3\n"
	if got := out.String(); got != want {
		t.Errorf("output =\n%s\nwant\n%s", got, want)
	}
}
