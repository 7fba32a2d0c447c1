package cli

import (
	"errors"
	"strings"
	"testing"

	"github.com/movierank-dev/movierank/pkg/movierank"
)

func TestIngestCmd_ArgsValidation(t *testing.T) {
	if err := ingestCmd.Args(ingestCmd, []string{}); err == nil {
		t.Fatal("Expected error for missing args")
	}
	if err := ingestCmd.Args(ingestCmd, []string{"a", "b"}); err == nil {
		t.Fatal("Expected error for too many args")
	}
	if err := ingestCmd.Args(ingestCmd, []string{"./data"}); err != nil {
		t.Fatalf("Expected one arg to be accepted, got: %v", err)
	}
}

func TestEmbedCmd_ArgsValidation(t *testing.T) {
	if err := embedCmd.Args(embedCmd, []string{}); err == nil {
		t.Fatal("Expected error for missing args")
	}
	if err := embedCmd.Args(embedCmd, []string{"movies.csv"}); err != nil {
		t.Fatalf("Expected one arg to be accepted, got: %v", err)
	}
}

func TestInitCmd_ArgsValidation(t *testing.T) {
	if err := initCmd.Args(initCmd, []string{}); err != nil {
		t.Fatalf("Expected zero args to be accepted, got: %v", err)
	}
	if err := initCmd.Args(initCmd, []string{"movies"}); err != nil {
		t.Fatalf("Expected one arg to be accepted, got: %v", err)
	}
	if err := initCmd.Args(initCmd, []string{"a", "b"}); err == nil {
		t.Fatal("Expected error for too many args")
	}
}

func TestRequireDatabase(t *testing.T) {
	if err := requireDatabase("movies", "ingest"); err != nil {
		t.Fatalf("Expected no error for provided database, got: %v", err)
	}

	err := requireDatabase("", "ingest")
	if err == nil {
		t.Fatal("Expected error for missing database")
	}
	if !errors.Is(err, movierank.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got: %v", err)
	}
	if got := movierank.ExitCodeForError(err); got != movierank.ExitConfigError {
		t.Errorf("Expected exit code %d, got %d", movierank.ExitConfigError, got)
	}
	if !strings.Contains(err.Error(), "movierank ingest") {
		t.Errorf("Expected guidance naming the command, got: %v", err)
	}
}

func TestEmbedCmd_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")

	err := runEmbed(embedCmd, []string{"movies.csv"})
	if err == nil {
		t.Fatal("Expected error for missing API key")
	}
	if !errors.Is(err, movierank.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got: %v", err)
	}
	if !strings.Contains(err.Error(), "OPENROUTER_API_KEY") {
		t.Errorf("Expected error to name the env var, got: %v", err)
	}
}

func TestResolveConnection_ConflictingFlags(t *testing.T) {
	flags := &connFlagValues{
		connection: "postgresql://localhost/postgres",
		host:       "otherhost",
	}

	_, _, err := resolveConnection(flags, nil, false)
	if err == nil {
		t.Fatal("Expected error for --connection combined with --host")
	}
}

func TestResolveConnection_DatabaseFlagOverridesConnString(t *testing.T) {
	flags := &connFlagValues{
		connection: "postgresql://user@localhost:5433/postgres",
		database:   "movies",
	}

	cfg, managementDB, err := resolveConnection(flags, nil, false)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Database != "movies" {
		t.Errorf("Expected -d flag to win, got database %q", cfg.Database)
	}
	if managementDB != "postgres" {
		t.Errorf("Expected management database 'postgres', got %q", managementDB)
	}
}

func TestResolveConnection_CloudFlagsSelectAuthMethod(t *testing.T) {
	flags := &connFlagValues{
		host:      "db.example.com",
		username:  "iamuser",
		database:  "movies",
		awsRegion: "eu-west-1",
	}

	cfg, _, err := resolveConnection(flags, nil, false)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.AuthMethod != movierank.AuthMethodAWSIAM {
		t.Errorf("Expected AWS IAM auth method, got %v", cfg.AuthMethod)
	}
	if cfg.AWSRegion != "eu-west-1" {
		t.Errorf("Expected region to carry over, got %q", cfg.AWSRegion)
	}
}

func TestCommandContext_InvalidConfigTimeout(t *testing.T) {
	_, _, err := commandContext(searchCmd, "not-a-duration")
	if err == nil {
		t.Fatal("Expected error for invalid movierank.yaml timeout")
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Errorf("Expected timeout parse error, got: %v", err)
	}
}

func TestCommandContext_ConfigTimeoutApplied(t *testing.T) {
	ctx, cancel, err := commandContext(searchCmd, "1h")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer cancel()

	if _, ok := ctx.Deadline(); !ok {
		t.Error("Expected context to carry a deadline from the config timeout")
	}
}

func TestCommandContext_NoTimeout(t *testing.T) {
	ctx, cancel, err := commandContext(searchCmd, "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer cancel()

	if _, ok := ctx.Deadline(); ok {
		t.Error("Expected no deadline when timeout is unset")
	}
}
