// submit_runs.go uploads every input workbook in a directory to the Prioritizer API.
//
// Usage:
//
//	go run scripts/submit_runs.go -dir ./inputs -api http://localhost:8600 -client planner
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type rankedOption struct {
	Option   string  `json:"option"`
	View     string  `json:"view"`
	Scenario string  `json:"scenario"`
	Total    float64 `json:"total"`
	Rank     int     `json:"rank"`
	Bin      string  `json:"bin"`
}

type runResponse struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	SummedAndRanked []rankedOption `json:"summed_and_ranked"`
	Warnings        []string       `json:"warnings"`
}

func main() {
	dir := flag.String("dir", ".", "directory containing input workbooks")
	apiURL := flag.String("api", "http://localhost:8600", "Prioritizer API base URL")
	clientID := flag.String("client", "script", "X-Client-ID header value")
	dryRun := flag.Bool("dry-run", false, "list workbooks without uploading")
	flag.Parse()

	paths, err := filepath.Glob(filepath.Join(*dir, "*.xlsx"))
	if err != nil {
		log.Fatalf("list workbooks: %v", err)
	}
	// Skip Excel lock files.
	var workbooks []string
	for _, p := range paths {
		if !strings.HasPrefix(filepath.Base(p), "~$") {
			workbooks = append(workbooks, p)
		}
	}
	sort.Strings(workbooks)
	log.Printf("found %d workbooks in %s", len(workbooks), *dir)

	if *dryRun {
		for i, p := range workbooks {
			fmt.Printf("[%d] %s\n", i+1, p)
		}
		return
	}

	client := &http.Client{Timeout: 5 * time.Minute}
	completed, failed := 0, 0
	for _, p := range workbooks {
		res, err := upload(client, *apiURL, *clientID, p)
		if err != nil {
			log.Printf("skip %s: %v", p, err)
			failed++
			continue
		}
		completed++
		for _, w := range res.Warnings {
			log.Printf("%s: warning: %s", p, w)
		}
		for _, r := range res.SummedAndRanked {
			if r.View == "Overall" && r.Rank == 1 {
				fmt.Printf("%s\t%s\t%s\t%.4f\t%s\n", res.ID, r.Scenario, r.Option, r.Total, r.Bin)
			}
		}
	}

	log.Printf("done: %d completed, %d failed", completed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func upload(client *http.Client, apiURL, clientID, path string) (*runResponse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("workbook", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", apiURL+"/api/v1/runs/workbook", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Client-ID", clientID)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var res runResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &res, nil
}
