// Package main provides a CLI tool to score term sets from a CSV file against
// the scoring API. This simulates real production usage by making API calls
// with proper authentication.
//
// Each CSV row is one term set; every non-empty cell is a term.
//
// Usage:
//
//	go run scripts/score-csv/main.go -file /path/to/sets.csv -api-url http://localhost:8080 -api-key YOUR_API_KEY
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Config holds the CLI configuration
type Config struct {
	FilePath   string
	APIBaseURL string
	APIKey     string
	Space      string
	Normalize  bool
	DelayMS    int
	DryRun     bool
}

// ScoreRequest matches the divergence scoring request model
type ScoreRequest struct {
	Space     string   `json:"space,omitempty"`
	Terms     []string `json:"terms"`
	Normalize bool     `json:"normalize,omitempty"`
}

// ScoreResponse carries the fields this tool reports
type ScoreResponse struct {
	Score         float64  `json:"score"`
	Valid         bool     `json:"valid"`
	Band          string   `json:"band"`
	ExcludedTerms []string `json:"excluded_terms"`
	Normalization *struct {
		ZScore     float64 `json:"z_score"`
		Percentile float64 `json:"percentile"`
	} `json:"normalization,omitempty"`
}

func main() {
	cfg := parseFlags()

	file, err := os.Open(cfg.FilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	client := &http.Client{Timeout: 30 * time.Second}

	var scored, skipped, failed int
	row := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}

		row++

		if err != nil {
			fmt.Fprintf(os.Stderr, "Row %d: read error: %v\n", row, err)
			failed++

			continue
		}

		terms := collectTerms(record)
		if len(terms) < 2 {
			fmt.Printf("Row %d: skipped (%d term(s), need at least 2)\n", row, len(terms))
			skipped++

			continue
		}

		if cfg.DryRun {
			fmt.Printf("Row %d: would score %v\n", row, terms)
			scored++

			continue
		}

		resp, err := scoreTerms(client, cfg, terms)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Row %d: %v\n", row, err)
			failed++
		} else {
			report(row, terms, resp)
			scored++
		}

		if cfg.DelayMS > 0 {
			time.Sleep(time.Duration(cfg.DelayMS) * time.Millisecond)
		}
	}

	fmt.Printf("\nDone: %d scored, %d skipped, %d failed.\n", scored, skipped, failed)

	if failed > 0 {
		os.Exit(1)
	}
}

func parseFlags() Config {
	var cfg Config

	flag.StringVar(&cfg.FilePath, "file", "", "Path to the CSV file (required)")
	flag.StringVar(&cfg.APIBaseURL, "api-url", "http://localhost:8080", "Base URL of the API")
	flag.StringVar(&cfg.APIKey, "api-key", "", "API key (required unless -dry-run)")
	flag.StringVar(&cfg.Space, "space", "", "Embedding space (default: server's configured space)")
	flag.BoolVar(&cfg.Normalize, "normalize", false, "Request baseline normalization with each score")
	flag.IntVar(&cfg.DelayMS, "delay", 200, "Delay between requests in milliseconds")
	flag.BoolVar(&cfg.DryRun, "dry-run", false, "Parse the file without calling the API")

	flag.Parse()

	if cfg.FilePath == "" {
		fmt.Fprintln(os.Stderr, "Error: -file is required")
		flag.Usage()
		os.Exit(1)
	}

	if cfg.APIKey == "" && !cfg.DryRun {
		fmt.Fprintln(os.Stderr, "Error: -api-key is required")
		flag.Usage()
		os.Exit(1)
	}

	return cfg
}

func collectTerms(record []string) []string {
	var terms []string

	for _, cell := range record {
		cell = strings.TrimSpace(cell)
		if cell != "" {
			terms = append(terms, cell)
		}
	}

	return terms
}

func scoreTerms(client *http.Client, cfg Config, terms []string) (*ScoreResponse, error) {
	body, err := json.Marshal(ScoreRequest{Space: cfg.Space, Terms: terms, Normalize: cfg.Normalize})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(cfg.APIBaseURL, "/") + "/v1/score/divergence"

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var score ScoreResponse
	if err := json.Unmarshal(data, &score); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &score, nil
}

func report(row int, terms []string, resp *ScoreResponse) {
	if !resp.Valid {
		fmt.Printf("Row %d: not scorable (excluded: %v)\n", row, resp.ExcludedTerms)

		return
	}

	line := fmt.Sprintf("Row %d: score %.2f (%s), %d term(s)", row, resp.Score, resp.Band, len(terms))

	if len(resp.ExcludedTerms) > 0 {
		line += fmt.Sprintf(", excluded %v", resp.ExcludedTerms)
	}

	if resp.Normalization != nil {
		line += fmt.Sprintf(", z=%.2f p=%.3f", resp.Normalization.ZScore, resp.Normalization.Percentile)
	}

	fmt.Println(line)
}
