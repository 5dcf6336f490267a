package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"student_registry/internal/model"
	"student_registry/internal/pipeline"
	"student_registry/internal/repository/memkv"
	"student_registry/internal/service/registry"
	"student_registry/internal/service/xlsx"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	t      *testing.T
	app    *App
	closed int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	reg := registry.New(registry.Config{Namespace: "test"}, memkv.NewKVRepository(), xlsx.NewCodec(time.UTC), logger)
	f := &fixture{t: t}
	f.app = New(Options{
		Open: func(context.Context, []string, *zap.Logger) (*Env, error) {
			return &Env{
				Registry:   reg,
				ExportBase: "students",
				Close:      func() error { f.closed++; return nil },
			}, nil
		},
		NewLogger: func(bool) (*zap.Logger, error) { return logger, nil },
	})
	return f
}

func (f *fixture) run(stdin string, args ...string) (string, error) {
	f.t.Helper()
	root := f.app.NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAddAndList(t *testing.T) {
	f := newFixture(t)

	out, err := f.run("", "add", "Ali", "0101234567")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out, "MTD25-01") || !strings.Contains(out, "+20101234567") {
		t.Errorf("add output: %q", out)
	}
	if _, err := f.run("", "add", "Mona", "0111111111", "--code", "MONA1"); err != nil {
		t.Fatalf("add with code: %v", err)
	}

	out, err = f.run("", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "MONA1") || !strings.Contains(out, "total: 2") {
		t.Errorf("list output: %q", out)
	}
}

func TestAdd_Duplicate(t *testing.T) {
	f := newFixture(t)
	if _, err := f.run("", "add", "Ali", "0101234567"); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err := f.run("", "add", "Ali", "+20101234567")
	if !errors.Is(err, pipeline.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestBulk_Stdin(t *testing.T) {
	f := newFixture(t)
	out, err := f.run("Ali, 0101234567\nno comma here\nMona، 0111111111\n", "bulk")
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if strings.TrimSpace(out) != "accepted 2, skipped 1" {
		t.Errorf("bulk output: %q", out)
	}
}

func TestExportImport_File(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "out.xlsx")

	if _, err := f.run("", "export", "-o", path); !errors.Is(err, registry.ErrNothingToExport) {
		t.Fatalf("empty export: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("failed export must not leave a file")
	}

	if _, err := f.run("", "add", "Ali", "0101234567"); err != nil {
		t.Fatalf("add: %v", err)
	}
	out, err := f.run("", "export", "-o", path, "--title", "بيانات")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out, "exported 1 students") {
		t.Errorf("export output: %q", out)
	}

	out, err = f.run("", "import", path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if strings.TrimSpace(out) != "accepted 0, skipped 1, malformed 0" {
		t.Errorf("import output: %q", out)
	}
}

func TestDelete_RequiresYes(t *testing.T) {
	f := newFixture(t)
	if _, err := f.run("", "add", "Ali", "0101234567"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := f.run("", "delete", "MTD25-01"); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}
	if _, err := f.run("", "delete", "MTD25-01", "--yes"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.run("", "delete", "MTD25-01", "-y"); err == nil {
		t.Error("deleting an unknown code must fail")
	}

	out, err := f.run("", "list", "--format", "json")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var students []model.Student
	if err := json.Unmarshal([]byte(out), &students); err != nil || len(students) != 0 {
		t.Errorf("after delete: %q %v", out, err)
	}
}

func TestPrefix(t *testing.T) {
	f := newFixture(t)
	out, err := f.run("", "prefix")
	if err != nil || strings.TrimSpace(out) != pipeline.DefaultPrefix {
		t.Fatalf("prefix: %q %v", out, err)
	}
	if _, err := f.run("", "prefix", "ENG"); err != nil {
		t.Fatalf("set prefix: %v", err)
	}
	out, err = f.run("", "add", "Ali", "0101234567")
	if err != nil || !strings.Contains(out, "ENG-01") {
		t.Errorf("add after prefix: %q %v", out, err)
	}
}

func TestList_SearchAndBadFormat(t *testing.T) {
	f := newFixture(t)
	_, _ = f.run("", "add", "Ali", "0101234567")
	_, _ = f.run("", "add", "Mona", "0111111111")

	out, err := f.run("", "list", "-s", "mon", "--format", "json")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var students []model.Student
	if err := json.Unmarshal([]byte(out), &students); err != nil || len(students) != 1 || students[0].Name != "Mona" {
		t.Errorf("search result: %q %v", out, err)
	}
	if _, err := f.run("", "list", "--format", "yaml"); err == nil {
		t.Error("unknown format must fail")
	}
}

func TestExecute_ClosesStore(t *testing.T) {
	f := newFixture(t)
	if err := f.app.Execute(context.Background(), []string{"list", "--format", "json"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := f.app.Execute(context.Background(), []string{"delete", "X1"}); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("Execute delete: %v", err)
	}
	if f.closed != 2 {
		t.Errorf("store must be closed after every run, closed=%d", f.closed)
	}
}

// setenvForTest снимает переменную на время теста, чтобы godotenv мог ее выставить
func setenvForTest(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestOpenFromConfig_SeveralEnvFiles(t *testing.T) {
	setenvForTest(t, "STORE_BACKEND", "DEFAULT_PREFIX", "EXPORT_BASE_NAME")
	dir := t.TempDir()
	first := filepath.Join(dir, "first.env")
	second := filepath.Join(dir, "second.env")
	if err := os.WriteFile(first, []byte("STORE_BACKEND=memory\nDEFAULT_PREFIX=ENG\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(second, []byte("DEFAULT_PREFIX=LAW\nEXPORT_BASE_NAME=roster\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	env, err := OpenFromConfig(context.Background(), []string{first, second}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("OpenFromConfig: %v", err)
	}
	defer env.Close()

	prefix, err := env.Registry.Prefix(context.Background())
	if err != nil || prefix != "ENG" {
		t.Errorf("earlier file must win: prefix %q %v", prefix, err)
	}
	if env.ExportBase != "roster" {
		t.Errorf("values from the second file must apply: %q", env.ExportBase)
	}
}

func TestOpenFromConfig_MissingEnvFile(t *testing.T) {
	_, err := OpenFromConfig(context.Background(), []string{filepath.Join(t.TempDir(), "nope.env")}, zaptest.NewLogger(t))
	if err == nil {
		t.Error("an explicitly named .env file must exist")
	}
}
