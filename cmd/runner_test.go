package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tiagowl/ImgMigrator/internal/models"
	"github.com/tiagowl/ImgMigrator/internal/services"
	"github.com/tiagowl/ImgMigrator/internal/shared"
	"github.com/tiagowl/ImgMigrator/internal/tasks"
	tu "github.com/tiagowl/ImgMigrator/internal/testing"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// newTestRunner wires a runner to an in-memory database, the S3 sink kind and mock adapters.
func newTestRunner(t *testing.T, src *tu.MockSource, sink *tu.MockSink) (*Runner, *bytes.Buffer) {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	config := shared.DefaultConfig()
	config.Sink.Kind = shared.SinkS3
	config.Sink.S3.Bucket = "photos"

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config: config,
		Output: output,
		DB:     db,
		Source: &tasks.SourceBinding{
			Service: shared.ServiceICloud,
			New: func(ctx context.Context, userID string, token *oauth2.Token) (services.Source, error) {
				return src, src.Authenticate(ctx, token)
			},
		},
		Sink: &tasks.SinkBinding{
			Service: shared.SinkS3,
			New: func(ctx context.Context, userID string, token *oauth2.Token) (services.Sink, error) {
				return sink, sink.Authenticate(ctx, token)
			},
		},
	})
	return runner, output
}

// run executes args against a fresh command tree backed by r.
func run(r *Runner, args ...string) error {
	app := &cli.Command{
		Name: "imgmigrator",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config"},
			&cli.BoolFlag{Name: "verbose"},
		},
		Before:    r.before,
		Commands:  r.register(),
		Writer:    io.Discard,
		ErrWriter: io.Discard,
	}
	return app.Run(context.Background(), append([]string{"imgmigrator"}, args...))
}

func mustRun(t *testing.T, r *Runner, args ...string) {
	t.Helper()
	if err := run(r, args...); err != nil {
		t.Fatalf("%s: expected no error, got %v", strings.Join(args, " "), err)
	}
}

// connectedUser adds a user and stores both service credentials without verification.
func connectedUser(t *testing.T, r *Runner) {
	t.Helper()
	mustRun(t, r, "user", "add", "--email", "ada@example.com", "--name", "Ada")
	mustRun(t, r, "credentials", "set", "icloud", "-u", "ada@example.com", "--session", "sess", "--skip-verify")
	mustRun(t, r, "credentials", "set", "s3", "-u", "ada@example.com",
		"--access-key-id", "AKID", "--secret-access-key", "secret", "--skip-verify")
}

// createMigration runs migrate create --json and returns the new ID.
func createMigration(t *testing.T, r *Runner, output *bytes.Buffer) string {
	t.Helper()
	output.Reset()
	mustRun(t, r, "migrate", "create", "-u", "ada@example.com", "--json")

	var view models.MigrationView
	if err := json.Unmarshal(output.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode migration: %v (%s)", err, output.String())
	}
	if view.ID == "" {
		t.Fatal("expected migration ID")
	}
	output.Reset()
	return view.ID
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.isTerminal() {
				t.Error("expected buffer output not to be a terminal")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/test/path/config.toml"})

			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}
		for _, want := range []string{"setup", "user", "credentials", "migrate", "serve"} {
			if !names[want] {
				t.Errorf("expected %q command to be registered", want)
			}
		}
	})

	t.Run("before", func(t *testing.T) {
		t.Run("missing config file keeps defaults", func(t *testing.T) {
			runner, _ := newTestRunner(t, &tu.MockSource{}, &tu.MockSink{})
			defaults := runner.config

			mustRun(t, runner, "--config", filepath.Join(t.TempDir(), "absent.toml"), "user", "list")

			if runner.config != defaults {
				t.Error("expected default config to be kept")
			}
		})

		t.Run("loads YAML config", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			content := "sink:\n  kind: s3\n  s3:\n    bucket: archive\n"
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			runner, _ := newTestRunner(t, &tu.MockSource{}, &tu.MockSink{})
			mustRun(t, runner, "--config", path, "user", "list")

			if runner.config.Sink.Kind != shared.SinkS3 || runner.config.Sink.S3.Bucket != "archive" {
				t.Errorf("expected s3 sink with bucket archive, got %+v", runner.config.Sink)
			}
			if runner.configPath != path {
				t.Errorf("expected configPath %s, got %s", path, runner.configPath)
			}
		})
	})
}

func TestSetupDatabase(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(dir, "setup.db")
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Config: config, Output: output})

	mustRun(t, runner, "setup")

	tu.AssertFileExists(t, filepath.Join(dir, "config.toml"))
	tu.AssertFileExists(t, config.Database.Path)
	if !strings.Contains(output.String(), "Database ready") {
		t.Errorf("expected ready message, got %q", output.String())
	}
}

func TestUserCommands(t *testing.T) {
	runner, output := newTestRunner(t, &tu.MockSource{}, &tu.MockSink{})

	t.Run("add requires email", func(t *testing.T) {
		if err := run(runner, "user", "add"); err == nil {
			t.Fatal("expected error without --email")
		}
	})

	t.Run("add then list as JSON", func(t *testing.T) {
		mustRun(t, runner, "user", "add", "--email", "ada@example.com", "--name", "Ada")
		if !strings.Contains(output.String(), "ada@example.com") {
			t.Errorf("expected confirmation, got %q", output.String())
		}

		output.Reset()
		mustRun(t, runner, "user", "list", "--json")

		var users []userView
		if err := json.Unmarshal(output.Bytes(), &users); err != nil {
			t.Fatalf("failed to decode users: %v", err)
		}
		if len(users) != 1 || users[0].Email != "ada@example.com" || users[0].Name != "Ada" {
			t.Errorf("unexpected users: %+v", users)
		}
	})

	t.Run("unknown user is rejected", func(t *testing.T) {
		err := run(runner, "migrate", "list", "-u", "nobody@example.com")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("missing user flag", func(t *testing.T) {
		err := run(runner, "migrate", "list")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestCredentialCommands(t *testing.T) {
	runner, output := newTestRunner(t, &tu.MockSource{}, &tu.MockSink{})
	mustRun(t, runner, "user", "add", "--email", "ada@example.com")

	t.Run("list before connecting", func(t *testing.T) {
		output.Reset()
		mustRun(t, runner, "credentials", "list", "-u", "ada@example.com", "--json")

		var status map[string]bool
		if err := json.Unmarshal(output.Bytes(), &status); err != nil {
			t.Fatalf("failed to decode status: %v", err)
		}
		if status[shared.ServiceICloud] || status[shared.SinkS3] {
			t.Errorf("expected nothing connected, got %v", status)
		}
	})

	t.Run("create without credentials", func(t *testing.T) {
		err := run(runner, "migrate", "create", "-u", "ada@example.com")
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("set stores tokens", func(t *testing.T) {
		mustRun(t, runner, "credentials", "set", "icloud", "-u", "ada@example.com", "--session", "sess", "--skip-verify")
		mustRun(t, runner, "credentials", "set", "s3", "-u", "ada@example.com",
			"--access-key-id", "AKID", "--secret-access-key", "secret", "--skip-verify")

		output.Reset()
		mustRun(t, runner, "credentials", "list", "-u", "ada@example.com", "--json")

		var status map[string]bool
		if err := json.Unmarshal(output.Bytes(), &status); err != nil {
			t.Fatalf("failed to decode status: %v", err)
		}
		if !status[shared.ServiceICloud] || !status[shared.SinkS3] {
			t.Errorf("expected both services connected, got %v", status)
		}

		users, _ := runner.users.List(map[string]any{})
		token, err := runner.secrets.GetValidToken(context.Background(), users[0].ID(), shared.SinkS3)
		if err != nil {
			t.Fatalf("expected stored token, got %v", err)
		}
		if token.AccessToken != "AKID:secret" {
			t.Errorf("expected joined key pair, got %q", token.AccessToken)
		}
	})

	t.Run("set icloud verifies the session", func(t *testing.T) {
		proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer good" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`{"valid":true}`))
		}))
		defer proxy.Close()
		runner.config.Credentials.ICloud.ProxyURL = proxy.URL

		err := run(runner, "credentials", "set", "icloud", "-u", "ada@example.com", "--session", "bad")
		if !errors.Is(err, shared.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
		mustRun(t, runner, "credentials", "set", "icloud", "-u", "ada@example.com", "--session", "good")
	})

	t.Run("remove disconnects a service", func(t *testing.T) {
		output.Reset()
		mustRun(t, runner, "credentials", "remove", "-u", "ada@example.com", "s3")
		if !strings.Contains(output.String(), "s3 disconnected") {
			t.Errorf("expected confirmation, got %q", output.String())
		}

		output.Reset()
		mustRun(t, runner, "credentials", "list", "-u", "ada@example.com", "--json")
		var status map[string]bool
		if err := json.Unmarshal(output.Bytes(), &status); err != nil {
			t.Fatalf("failed to decode status: %v", err)
		}
		if status[shared.SinkS3] || !status[shared.ServiceICloud] {
			t.Errorf("expected only icloud connected, got %v", status)
		}

		if err := run(runner, "credentials", "remove", "-u", "ada@example.com", "s3"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
		if err := run(runner, "credentials", "remove", "-u", "ada@example.com", "dropbox"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("connect google requires client config", func(t *testing.T) {
		runner.config.Credentials.Google = shared.GoogleConfig{}
		err := run(runner, "credentials", "connect", "google", "-u", "ada@example.com")
		if !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})
}

func TestMigrateCommands(t *testing.T) {
	t.Run("run transfers every item", func(t *testing.T) {
		src := &tu.MockSource{Items: tu.NewItems(3), Count: 3}
		sink := &tu.MockSink{}
		runner, output := newTestRunner(t, src, sink)
		connectedUser(t, runner)
		id := createMigration(t, runner, output)

		mustRun(t, runner, "migrate", "run", "-u", "ada@example.com", id)

		if len(sink.Uploads) != 3 {
			t.Errorf("expected 3 uploads, got %d", len(sink.Uploads))
		}
		out := output.String()
		if !strings.Contains(out, "Migration completed") {
			t.Errorf("expected completion message, got %q", out)
		}
		if !strings.Contains(out, "Transferred: 3 / 3") {
			t.Errorf("expected counters, got %q", out)
		}

		output.Reset()
		mustRun(t, runner, "migrate", "status", "-u", "ada@example.com", "--json", id)

		var progress models.Progress
		if err := json.Unmarshal(output.Bytes(), &progress); err != nil {
			t.Fatalf("failed to decode progress: %v", err)
		}
		if progress.Status != models.StatusCompleted || progress.TransferredItems != 3 {
			t.Errorf("unexpected progress: %+v", progress)
		}
	})

	t.Run("run requires an id", func(t *testing.T) {
		runner, _ := newTestRunner(t, &tu.MockSource{}, &tu.MockSink{})
		connectedUser(t, runner)

		err := run(runner, "migrate", "run", "-u", "ada@example.com")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("unknown migration", func(t *testing.T) {
		runner, _ := newTestRunner(t, &tu.MockSource{}, &tu.MockSink{})
		connectedUser(t, runner)

		err := run(runner, "migrate", "status", "-u", "ada@example.com", "missing")
		if !errors.Is(err, shared.ErrMigrationNotFound) {
			t.Errorf("expected ErrMigrationNotFound, got %v", err)
		}
	})

	t.Run("lifecycle commands", func(t *testing.T) {
		runner, output := newTestRunner(t, &tu.MockSource{}, &tu.MockSink{})
		connectedUser(t, runner)
		id := createMigration(t, runner, output)

		tests := []struct {
			name    string
			args    []string
			wantErr error
			want    string
		}{
			{"pause pending", []string{"pause"}, shared.ErrInvalidTransition, ""},
			{"resume pending", []string{"resume"}, shared.ErrInvalidTransition, ""},
			{"cancel pending", []string{"cancel"}, nil, "failed"},
			{"cancel again", []string{"cancel"}, shared.ErrInvalidTransition, ""},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				output.Reset()
				args := append([]string{"migrate"}, tt.args...)
				err := run(runner, append(args, "-u", "ada@example.com", id)...)

				if tt.wantErr != nil {
					if !errors.Is(err, tt.wantErr) {
						t.Errorf("expected %v, got %v", tt.wantErr, err)
					}
					return
				}
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if !strings.Contains(output.String(), tt.want) {
					t.Errorf("expected %q in %q", tt.want, output.String())
				}
			})
		}
	})

	t.Run("list filters by status", func(t *testing.T) {
		runner, output := newTestRunner(t, &tu.MockSource{}, &tu.MockSink{})
		connectedUser(t, runner)
		first := createMigration(t, runner, output)
		second := createMigration(t, runner, output)
		mustRun(t, runner, "migrate", "cancel", "-u", "ada@example.com", first)

		output.Reset()
		mustRun(t, runner, "migrate", "list", "-u", "ada@example.com", "--status", "pending", "--json")

		var views []models.MigrationView
		if err := json.Unmarshal(output.Bytes(), &views); err != nil {
			t.Fatalf("failed to decode migrations: %v", err)
		}
		if len(views) != 1 || views[0].ID != second {
			t.Errorf("expected only %s, got %+v", second, views)
		}

		err := run(runner, "migrate", "list", "-u", "ada@example.com", "--status", "bogus")
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("report", func(t *testing.T) {
		src := &tu.MockSource{Items: tu.NewItems(2), Count: 2}
		runner, output := newTestRunner(t, src, &tu.MockSink{})
		connectedUser(t, runner)
		id := createMigration(t, runner, output)
		mustRun(t, runner, "migrate", "run", "-u", "ada@example.com", id)

		dir := t.TempDir()

		t.Run("csv", func(t *testing.T) {
			base := filepath.Join(dir, "report")
			mustRun(t, runner, "migrate", "report", "-u", "ada@example.com", "--output", base, id)

			tu.AssertFileExists(t, base+"_items.csv")
			tu.AssertFileExists(t, base+"_summary.json")
			csv := tu.MustReadFile(t, base+"_items.csv")
			if !strings.Contains(csv, "photo-0.jpg") || !strings.Contains(csv, "photo-1.jpg") {
				t.Errorf("expected both items in CSV, got %q", csv)
			}
		})

		t.Run("markdown", func(t *testing.T) {
			out := filepath.Join(dir, "md")
			mustRun(t, runner, "migrate", "report", "-u", "ada@example.com", "-f", "md", "-o", out, id)
			tu.AssertFileExists(t, filepath.Join(out, "README.md"))
		})

		t.Run("json", func(t *testing.T) {
			out := filepath.Join(dir, "report.json")
			mustRun(t, runner, "migrate", "report", "-u", "ada@example.com", "-f", "json", "-o", out, id)
			tu.AssertFileExists(t, out)
		})

		t.Run("unknown format", func(t *testing.T) {
			err := run(runner, "migrate", "report", "-u", "ada@example.com", "-f", "xml", id)
			if !errors.Is(err, shared.ErrInvalidFlag) {
				t.Errorf("expected ErrInvalidFlag, got %v", err)
			}
		})
	})
}

func TestPrintOutcome(t *testing.T) {
	tests := []struct {
		name    string
		outcome *tasks.Outcome
		want    []string
	}{
		{
			name: "completed",
			outcome: &tasks.Outcome{Kind: tasks.OutcomeCompleted, Progress: &models.Progress{
				MigrationID: "m1", Status: models.StatusCompleted, TotalItems: 4, TransferredItems: 4, ProgressPercent: 100,
			}},
			want: []string{"Migration completed", "4 / 4", "100.0%"},
		},
		{
			name: "paused with estimate",
			outcome: &tasks.Outcome{Kind: tasks.OutcomeInterrupted, Reason: tasks.ReasonPaused, Progress: &models.Progress{
				MigrationID: "m1", Status: models.StatusPaused, TotalItems: 10, TransferredItems: 2, Estimated: true,
			}},
			want: []string{"interrupted (paused)", "2 / ~10", "migrate resume --user <user> m1"},
		},
		{
			name:    "failed",
			outcome: &tasks.Outcome{Kind: tasks.OutcomeFailed, Reason: "source credentials rejected"},
			want:    []string{"Migration failed: source credentials rejected"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})
			runner.palette = NewPalette("", "", "", "", "")

			if err := runner.printOutcome(tt.outcome); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(output.String(), want) {
					t.Errorf("expected %q in %q", want, output.String())
				}
			}
		})
	}
}

func TestProgressPrinter(t *testing.T) {
	output := &bytes.Buffer{}
	printer := newProgressPrinter(output, NewPalette("", "", "", "", ""), false)

	updates := make(chan tasks.ProgressUpdate, 200)
	updates <- tasks.ProgressUpdate{Phase: tasks.Connect, Message: "Connecting"}
	for i := 1; i <= 120; i++ {
		updates <- tasks.ProgressUpdate{Phase: tasks.TransferItems, Step: i, Total: 120, Message: "item"}
	}
	close(updates)

	printer.consume(updates)

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	// connect line, steps 50 and 100, and the final step
	if len(lines) != 4 {
		t.Errorf("expected 4 lines, got %d: %q", len(lines), lines)
	}
	if !strings.Contains(lines[0], "Connecting") {
		t.Errorf("expected connect line first, got %q", lines[0])
	}
}
