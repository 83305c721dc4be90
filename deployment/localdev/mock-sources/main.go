package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

type page struct {
	Items  []map[string]any `json:"items"`
	Total  int              `json:"total"`
	Offset int              `json:"offset"`
	Limit  int              `json:"limit"`
}

func main() {
	addr := flag.String("addr", ":8090", "listen address")
	accountsPath := flag.String("accounts", "data/accounts.json", "JSON array of account records")
	issuesPath := flag.String("issues", "data/issues.json", "JSON array of issue records")
	apiKey := flag.String("api-key", "", "require this bearer token when set")
	flag.Parse()

	logger := log.New(log.Writer(), "sources-mock ", log.LstdFlags|log.Lmicroseconds)

	accounts, err := loadRecords(*accountsPath)
	if err != nil {
		logger.Fatalf("load accounts: %v", err)
	}
	issues, err := loadRecords(*issuesPath)
	if err != nil {
		logger.Fatalf("load issues: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/v1/accounts", paginated(accounts, *apiKey))
	mux.HandleFunc("/api/v1/issues", paginated(issues, *apiKey))

	srv := &http.Server{
		Addr:              *addr,
		Handler:           logRequests(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Printf("serving %d accounts and %d issues on %s", len(accounts), len(issues), *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func loadRecords(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func paginated(records []map[string]any, apiKey string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if apiKey != "" && strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ") != apiKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		limit := queryInt(r, "limit", 100)
		offset := queryInt(r, "offset", 0)
		if limit <= 0 || offset < 0 {
			http.Error(w, "limit must be positive and offset non-negative", http.StatusBadRequest)
			return
		}

		start := min(offset, len(records))
		end := min(start+limit, len(records))
		writeJSON(w, page{Items: records[start:end], Total: len(records), Offset: offset, Limit: limit})
	}
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Printf("%s %s?%s %s", r.Method, r.URL.Path, r.URL.RawQuery, time.Since(start))
	})
}
