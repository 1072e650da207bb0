// replay-capture re-posts captured webhook requests to a running exporter.
//
//	go run scripts/replay-capture.go -file webhook -target http://localhost:8080/webhook
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/tedeeprom/tedeeprom/internal/model"
)

const maxLineSize = 1 << 20

func main() {
	var (
		file    = flag.String("file", "webhook", "Capture file (one JSON record per line)")
		target  = flag.String("target", "http://localhost:8080/webhook", "Webhook URL to post to")
		event   = flag.String("event", "", "Only replay records with this event")
		delay   = flag.Duration("delay", 0, "Pause between requests")
		timeout = flag.Duration("timeout", 5*time.Second, "Per-request timeout")
		dryRun  = flag.Bool("dry-run", false, "Print form bodies instead of posting")
	)
	flag.Parse()

	f, err := os.Open(*file)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open capture file:", err)
		os.Exit(1)
	}
	defer f.Close()

	client := &http.Client{Timeout: *timeout}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var sent, skipped, failed int
	for line := 1; scanner.Scan(); line++ {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var rec model.CaptureRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			fmt.Fprintf(os.Stderr, "line %d: decode record: %v\n", line, err)
			failed++
			continue
		}
		if *event != "" && rec.Event != *event {
			skipped++
			continue
		}

		form, err := formValues(rec.Payload)
		if err != nil {
			fmt.Fprintf(os.Stderr, "line %d (%s): %v\n", line, rec.ID, err)
			failed++
			continue
		}

		if *dryRun {
			fmt.Println(form.Encode())
			sent++
			continue
		}

		if err := post(client, *target, form); err != nil {
			fmt.Fprintf(os.Stderr, "line %d (%s): %v\n", line, rec.ID, err)
			failed++
			continue
		}
		sent++

		if *delay > 0 {
			time.Sleep(*delay)
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "read capture file:", err)
		os.Exit(1)
	}

	fmt.Printf("replayed %d, skipped %d, failed %d\n", sent, skipped, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// formValues flattens a captured payload into form values.
func formValues(payload json.RawMessage) (url.Values, error) {
	fields := make(map[string]any)
	dec := json.NewDecoder(strings.NewReader(string(payload)))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	form := url.Values{}
	for k, v := range fields {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			form.Set(k, val)
		case json.Number:
			form.Set(k, val.String())
		case bool:
			if val {
				form.Set(k, "1")
			} else {
				form.Set(k, "0")
			}
		default:
			b, _ := json.Marshal(val)
			form.Set(k, string(b))
		}
	}
	return form, nil
}

func post(client *http.Client, target string, form url.Values) error {
	ctx, cancel := context.WithTimeout(context.Background(), client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}
