package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"gopkg.in/yaml.v3"

	"github.com/okian/loopwise/internal/config"
	"github.com/okian/loopwise/internal/domain/dynamics"
	"github.com/okian/loopwise/internal/domain/model"
	"github.com/okian/loopwise/pkg/logger"
)

const requestYAML = `entity_name: Acme
domain_label: retail
metric_names: [a, b]
time_series:
  a: [3, 1, 4, 1, 5, 9, 2, 6, 5, 3]
  b: [6, 2, 8, 2, 10, 18, 4, 12, 10, 6]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// execute runs the root command with args and returns stdout.
func execute(stdin string, args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAnalyzeCommand(t *testing.T) {
	convey.Convey("Given a request file", t, func() {
		path := writeFile(t, "series.yaml", requestYAML)

		convey.Convey("When it is analyzed with JSON output", func() {
			out, err := execute("", "analyze", path)

			convey.Convey("Then the analysis is printed", func() {
				convey.So(err, convey.ShouldBeNil)
				var a dynamics.Analysis
				convey.So(json.Unmarshal([]byte(out), &a), convey.ShouldBeNil)
				convey.So(a.EntityName, convey.ShouldEqual, "Acme")
				convey.So(a.DomainLabel, convey.ShouldEqual, "retail")
				convey.So(a.CausalLinks, convey.ShouldHaveLength, 1)
				convey.So(a.MetricsAnalyzed, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When YAML output and overrides are requested", func() {
			out, err := execute("", "analyze", "-f", path, "-o", "yaml", "--entity", "Globex", "--log-level", "debug")

			convey.Convey("Then YAML is printed with the override applied", func() {
				convey.So(err, convey.ShouldBeNil)
				var doc map[string]interface{}
				convey.So(yaml.Unmarshal([]byte(out), &doc), convey.ShouldBeNil)
				convey.So(doc["entity_name"], convey.ShouldEqual, "Globex")
				convey.So(doc["causal_links"], convey.ShouldHaveLength, 1)
			})
		})

		convey.Convey("When the request comes from stdin as JSON", func() {
			out, err := execute(`{"time_series":{"a":[3,1,4,1,5,9,2,6,5,3],"b":[6,2,8,2,10,18,4,12,10,6]}}`, "analyze", "-")
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, `"causal_links"`)
		})

		convey.Convey("When the output format is unknown", func() {
			_, err := execute("", "analyze", path, "-o", "xml")
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "unknown output format")
		})
	})

	convey.Convey("Given bad input", t, func() {
		convey.Convey("When no file is given", func() {
			_, err := execute("", "analyze")
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "request file is required")
		})

		convey.Convey("When the file has no series", func() {
			_, err := execute("", "analyze", writeFile(t, "empty.yaml", "entity_name: Acme\n"))
			convey.So(errors.Is(err, model.ErrInvalidRequest), convey.ShouldBeTrue)
		})

		convey.Convey("When the file has unknown keys", func() {
			_, err := execute("", "analyze", writeFile(t, "typo.yaml", "series: {}\n"))
			convey.So(errors.Is(err, model.ErrInvalidRequest), convey.ShouldBeTrue)
		})

		convey.Convey("When the file is empty", func() {
			_, err := execute("", "analyze", writeFile(t, "blank.yaml", ""))
			convey.So(errors.Is(err, model.ErrInvalidRequest), convey.ShouldBeTrue)
		})

		convey.Convey("When the log level is invalid", func() {
			_, err := execute("", "analyze", writeFile(t, "s.yaml", requestYAML), "--log-level", "loud")
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func TestServeAndSubmit(t *testing.T) {
	convey.Convey("Given a running server", t, func() {
		cfg := config.New()
		cfg.Addr = "127.0.0.1:0"
		cfg.WorkerCount = 1

		ctx, cancel := context.WithCancel(context.Background())
		addrCh := make(chan string, 1)
		done := make(chan error, 1)
		go func() {
			done <- runServe(ctx, cfg, logger.Nop(), func(addr string) { addrCh <- addr })
		}()

		var (
			once    sync.Once
			stopErr error
		)
		stop := func() error {
			once.Do(func() {
				cancel()
				select {
				case stopErr = <-done:
				case <-time.After(10 * time.Second):
					stopErr = errors.New("server did not stop")
				}
			})
			return stopErr
		}
		convey.Reset(func() { _ = stop() })

		var base string
		select {
		case addr := <-addrCh:
			base = "http://" + addr
		case err := <-done:
			t.Fatalf("server exited early: %v", err)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not start")
		}

		convey.Convey("Then health, docs and metrics are served", func() {
			for _, path := range []string{"/healthz", "/openapi.yaml", "/metrics", "/stats"} {
				resp, err := http.Get(base + path)
				convey.So(err, convey.ShouldBeNil)
				_ = resp.Body.Close()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			}
		})

		convey.Convey("When a file is submitted and awaited", func() {
			out, err := execute("", "submit", writeFile(t, "series.yaml", requestYAML),
				"--url", base, "--wait", "--timeout", "10s")

			convey.Convey("Then the finished job is printed", func() {
				convey.So(err, convey.ShouldBeNil)
				var job model.Job
				convey.So(json.Unmarshal([]byte(out), &job), convey.ShouldBeNil)
				convey.So(job.Status, convey.ShouldEqual, model.StatusSucceeded)
				convey.So(job.Result, convey.ShouldNotBeNil)
				convey.So(job.Result.EntityName, convey.ShouldEqual, "Acme")
			})
		})

		convey.Convey("When a file is submitted without waiting", func() {
			out, err := execute("", "submit", writeFile(t, "series.yaml", requestYAML), "--url", base, "-o", "yaml")
			convey.So(err, convey.ShouldBeNil)
			var sub model.Submission
			convey.So(yaml.Unmarshal([]byte(out), &sub), convey.ShouldBeNil)
			convey.So(sub.JobID, convey.ShouldNotBeEmpty)
		})

		convey.Convey("When the context is cancelled", func() {
			err := stop()

			convey.Convey("Then the server shuts down cleanly", func() {
				convey.So(err, convey.ShouldBeNil)
				_, err := http.Get(base + "/healthz")
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}
