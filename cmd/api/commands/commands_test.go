package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/userdirectory/core/internal/domain/entities"
)

func useDataFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.json")
	if content != "" {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	t.Setenv("DATA_FILE", path)
	t.Setenv("DATA_SOURCE", "cli-test")
	t.Setenv("LOG_LEVEL", "error")
	return path
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func readDoc(t *testing.T, path string) *entities.Document {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc entities.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("data file is not a valid document: %v", err)
	}
	return &doc
}

func TestDataInit(t *testing.T) {
	path := useDataFile(t, "")

	out, err := run(t, NewDataCommand(), "init")
	if err != nil {
		t.Fatalf("init error = %v", err)
	}
	if !strings.Contains(out, "Created") {
		t.Errorf("output = %q", out)
	}

	doc := readDoc(t, path)
	if len(doc.Users) != 0 || doc.Meta.DataSource != "cli-test" {
		t.Errorf("doc = %+v", doc)
	}

	out, err = run(t, NewDataCommand(), "init")
	if err != nil || !strings.Contains(out, "already exists") {
		t.Errorf("second init = %q, %v", out, err)
	}
}

func TestDataVerify(t *testing.T) {
	path := useDataFile(t, `{"users":[{"id":1,"name":"A"},{"id":2,"name":"B"}],"meta":{"total_users":5}}`)

	out, err := run(t, NewDataCommand(), "verify")
	if err == nil {
		t.Fatal("verify should fail on a wrong total_users")
	}
	if !strings.Contains(out, "total_users is 5") {
		t.Errorf("output = %q", out)
	}

	if _, err := run(t, NewDataCommand(), "verify", "--fix"); err != nil {
		t.Fatalf("verify --fix error = %v", err)
	}
	if doc := readDoc(t, path); doc.Meta.TotalUsers != 2 {
		t.Errorf("total_users = %d after fix, want 2", doc.Meta.TotalUsers)
	}

	out, err = run(t, NewDataCommand(), "verify")
	if err != nil || !strings.Contains(out, "no problems") {
		t.Errorf("verify after fix = %q, %v", out, err)
	}
}

func TestDataVerifyCorruptFile(t *testing.T) {
	useDataFile(t, "{broken")

	if _, err := run(t, NewDataCommand(), "verify"); err == nil {
		t.Error("verify should fail on an unparsable file")
	}
}

func TestCheckDocument(t *testing.T) {
	doc := &entities.Document{
		Users: []entities.User{{ID: 3, Name: "A"}, {ID: 3, Name: "B"}, {ID: 0, Name: "C"}},
		Meta:  entities.Meta{TotalUsers: 3},
	}

	problems := checkDocument(doc)
	if len(problems) != 2 {
		t.Fatalf("problems = %v, want 2", problems)
	}
	if !strings.Contains(problems[0], "non-positive") || !strings.Contains(problems[1], "id 3 is used by 2") {
		t.Errorf("problems = %v", problems)
	}
}

func TestUserCreate(t *testing.T) {
	path := useDataFile(t, `{"users":[{"id":7,"name":"Old"}],"meta":{"total_users":1,"data_source":"seed"}}`)

	out, err := run(t, NewUserCommand(), "create",
		"--name", "Rina", "--email", "rina@example.com", "--age", "28",
		"--city", "Medan", "--occupation", "Designer", "--hobbies", "drawing,hiking")
	if err != nil {
		t.Fatalf("create error = %v", err)
	}
	if !strings.Contains(out, "ID: 8") {
		t.Errorf("output = %q", out)
	}

	doc := readDoc(t, path)
	if len(doc.Users) != 2 || doc.Meta.TotalUsers != 2 || doc.Meta.DataSource != "seed" {
		t.Fatalf("doc = %+v", doc)
	}
	created := doc.Users[1]
	if !created.Hobbies.IsList() || len(created.Hobbies.List) != 2 {
		t.Errorf("hobbies = %+v, want a two item list", created.Hobbies)
	}
}

func TestUserCreateMissingFlag(t *testing.T) {
	path := useDataFile(t, "")

	_, err := run(t, NewUserCommand(), "create",
		"--name", "Rina", "--age", "28", "--city", "Medan", "--occupation", "Designer", "--hobbies", "drawing")
	if err == nil || err.Error() != "Missing required field: email" {
		t.Fatalf("error = %v, want missing email", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("data file must not be written when validation fails")
	}
}

func TestUserCreateRefusesCorruptFile(t *testing.T) {
	path := useDataFile(t, "{broken")

	_, err := run(t, NewUserCommand(), "create",
		"--name", "Rina", "--email", "r@example.com", "--age", "28",
		"--city", "Medan", "--occupation", "Designer", "--hobbies", "drawing")
	if err == nil {
		t.Fatal("create should refuse to overwrite an unreadable file")
	}
	if raw, _ := os.ReadFile(path); string(raw) != "{broken" {
		t.Errorf("file was rewritten: %q", raw)
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, NewVersionCommand())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Users Directory v"+Version) {
		t.Errorf("output = %q", out)
	}
}
