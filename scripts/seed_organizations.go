// seed_organizations.go is a standalone script that loads a CSV of 211 providers
// into the MoneyBall organization directory.
//
// The header row names the columns; recognised names are name, type, location,
// contact_person, phone, email, website, services and notes. Only name is
// required.
//
// Usage:
//
//	go run scripts/seed_organizations.go -csv providers.csv -api http://localhost:8700 -token $MONEYBALL_ADMIN_TOKEN
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
)

type organization struct {
	Name          string `json:"name"`
	Type          string `json:"type,omitempty"`
	Location      string `json:"location,omitempty"`
	ContactPerson string `json:"contact_person,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty"`
	Website       string `json:"website,omitempty"`
	Services      string `json:"services,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

func main() {
	csvPath := flag.String("csv", "organizations.csv", "path to the CSV file")
	apiURL := flag.String("api", "http://localhost:8700", "MoneyBall API base URL")
	token := flag.String("token", "", "admin bearer token")
	dryRun := flag.Bool("dry-run", false, "print organizations without posting")
	flag.Parse()

	f, err := os.Open(*csvPath)
	if err != nil {
		log.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	orgs, err := readOrganizations(f)
	if err != nil {
		log.Fatalf("read csv: %v", err)
	}
	log.Printf("parsed %d organizations from %s", len(orgs), *csvPath)

	if *dryRun {
		for i, o := range orgs {
			fmt.Printf("[%d] %s (type=%s, location=%s)\n", i+1, o.Name, o.Type, o.Location)
		}
		return
	}

	client := &http.Client{}
	created, skipped := 0, 0
	for _, o := range orgs {
		body, _ := json.Marshal(o)
		req, err := http.NewRequest("POST", *apiURL+"/api/v1/organizations", bytes.NewReader(body))
		if err != nil {
			log.Printf("skip %q: %v", o.Name, err)
			skipped++
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		if *token != "" {
			req.Header.Set("Authorization", "Bearer "+*token)
		}

		resp, err := client.Do(req)
		if err != nil {
			log.Printf("skip %q: %v", o.Name, err)
			skipped++
			continue
		}
		resp.Body.Close()

		if resp.StatusCode == http.StatusCreated {
			created++
		} else {
			log.Printf("skip %q: status %d", o.Name, resp.StatusCode)
			skipped++
		}
	}

	log.Printf("done: %d created, %d skipped", created, skipped)
}

func readOrganizations(r io.Reader) ([]organization, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["name"]; !ok {
		return nil, errors.New("header has no name column")
	}

	var orgs []organization
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		o := organization{
			Name:          field("name"),
			Type:          field("type"),
			Location:      field("location"),
			ContactPerson: field("contact_person"),
			Phone:         field("phone"),
			Email:         field("email"),
			Website:       field("website"),
			Services:      field("services"),
			Notes:         field("notes"),
		}
		if o.Name == "" {
			continue
		}
		orgs = append(orgs, o)
	}
	return orgs, nil
}
