package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type serviceStatus struct {
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Provider string `json:"provider,omitempty"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Services  struct {
		Database serviceStatus `json:"database"`
		LLM      serviceStatus `json:"llm"`
	} `json:"services"`
}

type llmStatusResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Provider   string   `json:"provider"`
		Model      string   `json:"model"`
		Configured bool     `json:"configured"`
		Healthy    bool     `json:"healthy"`
		Error      string   `json:"error"`
		Models     []string `json:"models"`
	} `json:"data"`
}

func main() {
	base := flag.String("url", "http://localhost:8080", "server base url")
	token := flag.String("token", "", "super admin bearer token; enables the LLM provider probe")
	flag.Parse()

	client := &http.Client{Timeout: 30 * time.Second}
	root := strings.TrimRight(*base, "/")

	fmt.Printf("🔍 Testing health endpoint: %s/health\n", root)
	body, status, err := get(client, root+"/health", "")
	if err != nil {
		fail("Error connecting to health endpoint: %v", err)
	}
	fmt.Printf("📊 Response Status: %d\n", status)

	var health HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		fail("Error parsing JSON response: %v", err)
	}
	if status != http.StatusOK || health.Status != "ok" {
		fail("Health status is not 'ok': %s (database: %s %s)", health.Status, health.Services.Database.Status, health.Services.Database.Error)
	}

	fmt.Printf("✅ Health check passed!\n")
	fmt.Printf("   Version: %s\n", health.Version)
	fmt.Printf("   Database: %s\n", health.Services.Database.Status)
	fmt.Printf("   LLM: %s (%s)\n", health.Services.LLM.Status, health.Services.LLM.Provider)

	if *token == "" {
		return
	}

	fmt.Printf("🔍 Probing LLM provider\n")
	body, status, err = get(client, root+"/api/admin/llm/status", *token)
	if err != nil {
		fail("Error calling LLM status: %v", err)
	}
	if status != http.StatusOK {
		fail("LLM status returned %d: %s", status, string(body))
	}
	var llm llmStatusResponse
	if err := json.Unmarshal(body, &llm); err != nil {
		fail("Error parsing LLM status: %v", err)
	}
	if !llm.Data.Healthy {
		fail("LLM provider %s unhealthy: %s", llm.Data.Provider, llm.Data.Error)
	}
	fmt.Printf("✅ LLM provider %s healthy, model %s, %d models available\n", llm.Data.Provider, llm.Data.Model, len(llm.Data.Models))
}

func get(client *http.Client, url, token string) ([]byte, int, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return body, resp.StatusCode, err
}

func fail(format string, args ...interface{}) {
	fmt.Printf("❌ "+format+"\n", args...)
	os.Exit(1)
}
