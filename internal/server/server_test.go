package server

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestShutdown_StopsHTTPServer(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	// The listener answers health checks once Serve is running.
	baseURL := "http://" + ln.Addr().String()
	var resp *http.Response
	for i := 0; i < 100; i++ {
		resp, err = http.Get(baseURL + "/health")
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never became reachable: %v", err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() = %v", err)
	}

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			t.Errorf("Serve() = %v, expected http.ErrServerClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after Shutdown")
	}

	if resp, err := http.Get(baseURL + "/health"); err == nil {
		resp.Body.Close()
		t.Error("server still accepting connections after Shutdown")
	}
}

func TestShutdown_BeforeStart(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() before Start = %v", err)
	}
}
