package cli_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/seiyo-lab/kaoban/pkg/cli"
)

func writeEnrollFile(t *testing.T, dir, name string, entry map[string]any) {
	t.Helper()
	raw, err := json.Marshal(entry)
	gt.NoError(t, err).Required()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, name), raw, 0600)).Required()
}

func TestRun_EnrollCommand(t *testing.T) {
	dir := t.TempDir()
	writeEnrollFile(t, dir, "alice-front.json", map[string]any{
		"name":       "Alice",
		"department": "Engineering",
		"encoding":   []float64{0.1, 0.2, 0.3, 0.4},
	})
	writeEnrollFile(t, dir, "alice-left.json", map[string]any{
		"name":     "Alice",
		"encoding": []float64{0.11, 0.21, 0.31, 0.41},
	})
	writeEnrollFile(t, dir, "bob.json", map[string]any{
		"name":     "Bob",
		"title":    "Supervisor",
		"encoding": []float64{0.9, 0.8, 0.7, 0.6},
	})

	err := cli.Run(context.Background(), []string{
		"kaoban", "enroll", "--dir", dir,
	}, "test")
	gt.NoError(t, err)
}

func TestRun_EnrollCommand_EmptyDir(t *testing.T) {
	err := cli.Run(context.Background(), []string{
		"kaoban", "enroll", "--dir", t.TempDir(),
	}, "test")
	gt.Error(t, err)
}

func TestRun_EnrollCommand_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0600)).Required()

	err := cli.Run(context.Background(), []string{
		"kaoban", "enroll", "--dir", dir,
	}, "test")
	gt.Error(t, err)
}

func TestRun_EnrollCommand_MissingName(t *testing.T) {
	dir := t.TempDir()
	writeEnrollFile(t, dir, "anon.json", map[string]any{
		"encoding": []float64{0.1, 0.2},
	})

	err := cli.Run(context.Background(), []string{
		"kaoban", "enroll", "--dir", dir,
	}, "test")
	gt.Error(t, err)
}
