// Command shadow_compare replays read-only catalog requests against the Go service and the legacy
// deployment and reports status or body drift. Volatile fields can be ignored per target.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"
)

type target struct {
	Method   string            `json:"method"`
	Path     string            `json:"path"`
	Body     json.RawMessage   `json:"body,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Ignore   []string          `json:"ignore,omitempty"`
	Critical bool              `json:"critical"`
}

type targetsFile struct {
	Ignore  []string `json:"ignore"`
	Targets []target `json:"targets"`
}

type result struct {
	Target       target
	GoStatus     int
	LegacyStatus int
	Diffs        []string
	Err          error
	GoTook       time.Duration
	LegacyTook   time.Duration
}

func (r result) ok() bool { return r.Err == nil && len(r.Diffs) == 0 }

func main() {
	var (
		goBase      = flag.String("go-base", "http://localhost:3000", "Go API base URL")
		legacyBase  = flag.String("legacy-base", "http://localhost:3001", "legacy API base URL")
		targetsPath = flag.String("targets", filepath.Join("scripts", "shadow_compare", "targets.json"), "targets file")
		token       = flag.String("token", "", "bearer token sent to both sides")
		timeout     = flag.Duration("timeout", 5*time.Second, "per-request timeout")
	)
	flag.Parse()

	file, err := loadTargets(*targetsPath)
	if err != nil {
		log.Fatalf("load targets: %v", err)
	}

	client := &http.Client{Timeout: *timeout}
	var breaking, optional int
	for _, t := range file.Targets {
		if *token != "" {
			if t.Headers == nil {
				t.Headers = map[string]string{}
			}
			t.Headers["Authorization"] = "Bearer " + *token
		}
		res := compare(client, *goBase, *legacyBase, t, append(file.Ignore, t.Ignore...))
		report(res)
		if res.ok() {
			continue
		}
		if t.Critical {
			breaking++
		} else {
			optional++
		}
	}

	fmt.Printf("breaking: %d, optional: %d\n", breaking, optional)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) (*targetsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file targetsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return &file, nil
}

func compare(client *http.Client, goBase, legacyBase string, t target, ignore []string) result {
	res := result{Target: t}
	goStatus, goBody, goTook, err := fetch(client, goBase, t)
	if err != nil {
		res.Err = fmt.Errorf("go: %w", err)
		return res
	}
	legacyStatus, legacyBody, legacyTook, err := fetch(client, legacyBase, t)
	if err != nil {
		res.Err = fmt.Errorf("legacy: %w", err)
		return res
	}

	res.GoStatus, res.LegacyStatus = goStatus, legacyStatus
	res.GoTook, res.LegacyTook = goTook, legacyTook
	if goStatus != legacyStatus {
		res.Diffs = append(res.Diffs, fmt.Sprintf("status %d != %d", goStatus, legacyStatus))
	}
	res.Diffs = append(res.Diffs, diffBodies(goBody, legacyBody, ignore)...)
	return res
}

func fetch(client *http.Client, base string, t target) (int, []byte, time.Duration, error) {
	method := strings.ToUpper(strings.TrimSpace(t.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := t.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var body io.Reader
	if len(t.Body) > 0 {
		body = bytes.NewReader(t.Body)
	}
	req, err := http.NewRequest(method, strings.TrimRight(base, "/")+path, body)
	if err != nil {
		return 0, nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range t.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, 0, err
	}
	return resp.StatusCode, data, time.Since(start), nil
}

// diffBodies compares two JSON documents after dropping ignored keys at any depth. Non-JSON bodies
// are compared byte for byte after trimming.
func diffBodies(a, b []byte, ignore []string) []string {
	if bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b)) {
		return nil
	}
	var aj, bj interface{}
	if json.Unmarshal(a, &aj) != nil || json.Unmarshal(b, &bj) != nil {
		return []string{"body differs"}
	}

	drop := make(map[string]struct{}, len(ignore))
	for _, k := range ignore {
		drop[k] = struct{}{}
	}
	var diffs []string
	walk("$", strip(aj, drop), strip(bj, drop), &diffs)
	return diffs
}

func strip(v interface{}, drop map[string]struct{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			if _, skip := drop[k]; skip {
				continue
			}
			out[k] = strip(inner, drop)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = strip(inner, drop)
		}
		return out
	default:
		return v
	}
}

func walk(path string, a, b interface{}, diffs *[]string) {
	am, aIsMap := a.(map[string]interface{})
	bm, bIsMap := b.(map[string]interface{})
	if aIsMap && bIsMap {
		for k, av := range am {
			bv, ok := bm[k]
			if !ok {
				*diffs = append(*diffs, fmt.Sprintf("%s.%s missing in legacy", path, k))
				continue
			}
			walk(path+"."+k, av, bv, diffs)
		}
		for k := range bm {
			if _, ok := am[k]; !ok {
				*diffs = append(*diffs, fmt.Sprintf("%s.%s missing in go", path, k))
			}
		}
		return
	}

	as, aIsSlice := a.([]interface{})
	bs, bIsSlice := b.([]interface{})
	if aIsSlice && bIsSlice {
		if len(as) != len(bs) {
			*diffs = append(*diffs, fmt.Sprintf("%s length %d != %d", path, len(as), len(bs)))
			return
		}
		for i := range as {
			walk(fmt.Sprintf("%s[%d]", path, i), as[i], bs[i], diffs)
		}
		return
	}

	if !reflect.DeepEqual(a, b) {
		*diffs = append(*diffs, fmt.Sprintf("%s: %v != %v", path, a, b))
	}
}

func report(r result) {
	status := "OK"
	switch {
	case r.Err != nil:
		status = "ERROR"
	case len(r.Diffs) > 0:
		status = "DIFF"
	}
	fmt.Printf("[%s] %s %s (go %d in %s, legacy %d in %s)\n", status, r.Target.Method, r.Target.Path, r.GoStatus, r.GoTook, r.LegacyStatus, r.LegacyTook)
	if r.Err != nil {
		fmt.Printf("  error: %v\n", r.Err)
	}
	for _, d := range r.Diffs {
		fmt.Printf("  %s\n", d)
	}
}
