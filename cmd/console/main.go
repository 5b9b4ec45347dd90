package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/jwebster45206/quest-engine/internal/handlers"
)

type ConsoleConfig struct {
	APIBaseURL string
	Timeout    time.Duration
}

func main() {
	cfg := &ConsoleConfig{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),
		Timeout:    30 * time.Second,
	}

	client := &http.Client{
		Timeout: cfg.Timeout,
	}

	if !testConnection(client, cfg.APIBaseURL) {
		fmt.Fprintf(os.Stderr, "Could not connect to API. Please ensure the API is running.\nTry: docker-compose up -d\n")
		os.Exit(1)
	}

	session, err := openSession(client, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open session: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(NewConsoleUI(cfg, client, session),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Session %s saved. Resume with SESSION_ID=%s\n", session.ID, session.ID)
}

// openSession resumes SESSION_ID when set, otherwise starts a new character
func openSession(client *http.Client, cfg *ConsoleConfig) (*sessionView, error) {
	if raw := os.Getenv("SESSION_ID"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_ID: %w", err)
		}
		return getSession(client, cfg.APIBaseURL, id)
	}

	fmt.Print("Name your character: ")
	name, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read name: %w", err)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Wanderer"
	}

	return createSession(client, cfg.APIBaseURL, handlers.CreateSessionRequest{
		CharacterID: characterID(name),
		Name:        name,
	})
}

// characterID derives a snake_case id from a display name
func characterID(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case b.Len() > 0 && !strings.HasSuffix(b.String(), "_"):
			b.WriteRune('_')
		}
	}
	id := strings.TrimSuffix(b.String(), "_")
	if id == "" {
		return "pc_" + uuid.NewString()[:8]
	}
	return id
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
